package keyhouse

import (
	"context"
	"fmt"
)

// LatestCommit returns the newest commit on the tracked branch via the
// commits listing endpoint.
func (c *Client) LatestCommit(ctx context.Context) (string, error) {
	var commits []CommitInfo

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("sha", c.branch).
		SetQueryParam("per_page", "1").
		SetSuccessResult(&commits).
		Get("/commits")

	if err := handleAPIError(resp, err, "list commits"); err != nil {
		return "", err
	}

	if len(commits) == 0 {
		return "", ErrNoCommits
	}

	c.logger.Info("fetched latest commit", "sha", commits[0].SHA)
	return commits[0].SHA, nil
}

// HeadCommit resolves the tracked branch pointer through the single-commit
// lookup endpoint.
func (c *Client) HeadCommit(ctx context.Context) (string, error) {
	var commit CommitInfo

	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&commit).
		Get("/commits/" + c.branch)

	if err := handleAPIError(resp, err, "head commit"); err != nil {
		return "", err
	}

	if commit.SHA == "" {
		return "", ErrNoSHA
	}

	return commit.SHA, nil
}

// CompareDiff fetches the unified diff text spanning base...head.
func (c *Client) CompareDiff(ctx context.Context, base, head string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader(HeaderAccept, acceptDiff).
		Get(fmt.Sprintf("/compare/%s...%s", base, head))

	if err := handleAPIError(resp, err, "compare diff"); err != nil {
		return "", err
	}

	c.logger.Info("fetched diff", "base", base, "head", head)
	return resp.String(), nil
}
