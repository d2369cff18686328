package keyhouse

import (
	"context"
)

// GetFile reads a file at path qualified by ref. A non-success response is
// not an error: the file may simply not exist at that ref, so the caller gets
// nil and the run keeps going. A success response without content behaves the
// same way.
func (c *Client) GetFile(ctx context.Context, path string, ref string) (*FileContent, error) {
	var file FileContent

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("ref", ref).
		SetSuccessResult(&file).
		Get("/contents/" + path)

	if err != nil {
		return nil, handleAPIError(resp, err, "get file "+path)
	}

	if resp.IsErrorState() {
		c.logger.Warn("keyhouse returned error for file", "path", path, "ref", ref, "status", resp.StatusCode)
		return nil, nil
	}

	if file.Content == "" {
		c.logger.Warn("no content field for file", "path", path, "ref", ref)
		return nil, nil
	}

	return &file, nil
}

// ListDir lists the entries of a directory at path on the tracked branch.
func (c *Client) ListDir(ctx context.Context, path string) ([]DirEntry, error) {
	var entries []DirEntry

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("ref", c.branch).
		SetSuccessResult(&entries).
		Get("/contents/" + path)

	if err := handleAPIError(resp, err, "list "+path); err != nil {
		return nil, err
	}

	return entries, nil
}
