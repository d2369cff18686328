// Package hostusers mutates local OS identity state: users, their group
// memberships and their managed home directories. All mutations shell out to
// the standard admin tools via sudo.
package hostusers

import "context"

// Manager provides the host identity operations the reconciler drives.
type Manager interface {
	// UserExists reports whether the named user exists on this host.
	UserExists(ctx context.Context, user string) (bool, error)
	// GroupExists reports whether the named group exists on this host.
	GroupExists(group string) bool
	// CreateUser creates the user with a managed home directory and seeds
	// its shell profile.
	CreateUser(ctx context.Context, user string) error
	// AddUserToGroup adds the user to the group, creating the user first if
	// missing. Requests for "sudo" retarget to "wheel" when the host has no
	// sudo group.
	AddUserToGroup(ctx context.Context, user, group string) error
	// RemoveUserFromGroup removes the user from the group.
	RemoveUserFromGroup(ctx context.Context, user, group string) error
	// DeleteUser removes the user and its home directory.
	DeleteUser(ctx context.Context, user string) error
}
