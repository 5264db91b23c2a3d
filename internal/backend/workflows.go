package backend

import (
	"context"
	"fmt"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/syncer"
)

// SyncWorkflows implements internal/syncer.Backend.
func (c *Client) SyncWorkflows(ctx context.Context, deviceID, token string, local []syncer.WorkflowDigest) (syncer.Response, error) {
	var resp syncer.Response
	path := fmt.Sprintf("/agent/devices/%s/workflows/sync", deviceID)
	if err := c.post(ctx, path, token, local, &resp); err != nil {
		return syncer.Response{}, agenterr.New(agenterr.KindSync, "workflow sync failed", err)
	}
	return resp, nil
}
