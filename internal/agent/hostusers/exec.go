package hostusers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var ErrNoAdminGroup = errors.New("hostusers: neither 'sudo' nor 'wheel' group exists")

// bashrcLoader sources per-group shell config for every group the user is in.
const bashrcLoader = `
# Load group-specific config if present
for group in $(id -nG "$USER"); do
    group_bashrc="/home/$group/.bashrc"
    [ -f "$group_bashrc" ] && source "$group_bashrc"
done
`

// Client implements Manager by shelling out to id, useradd, usermod,
// gpasswd and userdel.
type Client struct {
	homeRoot  string
	groupFile string
	logger    *slog.Logger
}

// NewClient creates a host identity client. Managed home directories are
// created under homeRoot.
func NewClient(homeRoot string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		homeRoot:  homeRoot,
		groupFile: "/etc/group",
		logger:    logger,
	}
}

func (c *Client) UserExists(ctx context.Context, user string) (bool, error) {
	err := exec.CommandContext(ctx, "id", user).Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("id %s: %w", user, err)
}

func (c *Client) GroupExists(group string) bool {
	contents, err := os.ReadFile(c.groupFile)
	if err != nil {
		return false
	}

	prefix := group + ":"
	for _, line := range strings.Split(string(contents), "\n") {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func (c *Client) CreateUser(ctx context.Context, user string) error {
	homeDir := filepath.Join(c.homeRoot, user)

	output, err := exec.CommandContext(ctx, "sudo", "useradd", "-m", "-d", homeDir, "--skel", "/etc/skel", user).CombinedOutput()
	if err != nil {
		return fmt.Errorf("create user %q: %w: %s", user, err, string(output))
	}

	// profile seeding is best effort, the account itself is what matters
	if err := c.seedBashrc(user); err != nil {
		c.logger.Error("failed to seed bashrc", "user", user, "error", err)
	} else {
		c.logger.Info("seeded bashrc", "user", user)
	}

	return nil
}

func (c *Client) AddUserToGroup(ctx context.Context, user, group string) error {
	exists, err := c.UserExists(ctx, user)
	if err != nil {
		return err
	}
	if !exists {
		c.logger.Info("user does not exist, creating", "user", user)
		if err := c.CreateUser(ctx, user); err != nil {
			return err
		}
	}

	target, err := c.resolveGroup(group)
	if err != nil {
		return err
	}

	output, err := exec.CommandContext(ctx, "sudo", "usermod", "-aG", target, user).CombinedOutput()
	if err != nil {
		return fmt.Errorf("add user %q to group %q: %w: %s", user, target, err, string(output))
	}

	c.logger.Info("user added to group", "user", user, "group", target)
	return nil
}

func (c *Client) RemoveUserFromGroup(ctx context.Context, user, group string) error {
	output, err := exec.CommandContext(ctx, "sudo", "gpasswd", "-d", user, group).CombinedOutput()
	if err != nil {
		return fmt.Errorf("remove user %q from group %q: %w: %s", user, group, err, string(output))
	}

	c.logger.Info("user removed from group", "user", user, "group", group)
	return nil
}

func (c *Client) DeleteUser(ctx context.Context, user string) error {
	output, err := exec.CommandContext(ctx, "sudo", "userdel", "-r", user).CombinedOutput()
	if err != nil {
		return fmt.Errorf("delete user %q: %w: %s", user, err, string(output))
	}

	c.logger.Info("user deleted", "user", user)
	return nil
}

// resolveGroup validates the group exists, retargeting "sudo" to "wheel" on
// hosts that only have the latter.
func (c *Client) resolveGroup(group string) (string, error) {
	if group == "sudo" {
		switch {
		case c.GroupExists("sudo"):
			return "sudo", nil
		case c.GroupExists("wheel"):
			return "wheel", nil
		default:
			return "", ErrNoAdminGroup
		}
	}

	if !c.GroupExists(group) {
		return "", fmt.Errorf("hostusers: group %q not found", group)
	}
	return group, nil
}

func (c *Client) seedBashrc(user string) error {
	path := filepath.Join(c.homeRoot, user, ".bashrc")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(bashrcLoader)
	return err
}

var _ Manager = (*Client)(nil)
