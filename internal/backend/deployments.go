package backend

import (
	"context"
	"fmt"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/deploy"
)

type deploymentListResponse struct {
	Deployments []deploy.Deployment `json:"deployments"`
}

// PendingDeployments implements internal/deploy.Backend.
func (c *Client) PendingDeployments(ctx context.Context, deviceID, token string) ([]deploy.Deployment, error) {
	var resp deploymentListResponse
	path := fmt.Sprintf("/agent/devices/%s/deployments", deviceID)
	if err := c.get(ctx, path, token, &resp); err != nil {
		return nil, agenterr.New(agenterr.KindDeploy, "fetch pending deployments failed", err)
	}
	return resp.Deployments, nil
}

// UpdateDeploymentStatus implements internal/deploy.Backend.
func (c *Client) UpdateDeploymentStatus(ctx context.Context, deploymentID, token string, update deploy.StatusUpdate) error {
	path := fmt.Sprintf("/deployments/%s/status", deploymentID)
	if err := c.patch(ctx, path, token, update, nil); err != nil {
		return agenterr.New(agenterr.KindDeploy, "update deployment status failed", err)
	}
	return nil
}

// SendDeploymentLog implements internal/deploy.Backend.
func (c *Client) SendDeploymentLog(ctx context.Context, deploymentID, token string, entry deploy.Log) error {
	path := fmt.Sprintf("/deployments/%s/logs", deploymentID)
	if err := c.post(ctx, path, token, entry, nil); err != nil {
		return agenterr.New(agenterr.KindDeploy, "send deployment log failed", err)
	}
	return nil
}
