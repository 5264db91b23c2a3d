package deploy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/alog"
	"github.com/ajime-dev/ajime-agent/internal/authn"
)

// Backend is the subset of the HTTP client the deployer needs.
type Backend interface {
	PendingDeployments(ctx context.Context, deviceID, token string) ([]Deployment, error)
	UpdateDeploymentStatus(ctx context.Context, deploymentID, token string, update StatusUpdate) error
	SendDeploymentLog(ctx context.Context, deploymentID, token string, entry Log) error
}

// Deployer polls the backend for pending deployments and executes them.
type Deployer struct {
	backend         Backend
	tokens          *authn.Manager
	deploymentsRoot string
	registries      []RegistryCredential
}

// New returns a Deployer that executes git/docker/compose deployments
// under deploymentsRoot (e.g. the storage layout's DeploymentsDir).
// registries is the optional table of container registry credentials
// docker deployments pre-authenticate against by host prefix; it may be nil.
func New(backend Backend, tokens *authn.Manager, deploymentsRoot string, registries []RegistryCredential) *Deployer {
	return &Deployer{backend: backend, tokens: tokens, deploymentsRoot: deploymentsRoot, registries: registries}
}

// PollAndExecute fetches pending deployments for this device and executes
// each in turn, logging (but not returning) any individual failure so one
// bad deployment does not stop the rest from being attempted.
func (d *Deployer) PollAndExecute(ctx context.Context) error {
	log := alog.WithComponent("deployer")

	deviceID, err := d.tokens.DeviceID(ctx)
	if err != nil {
		return err
	}
	tok, err := d.tokens.Current(ctx)
	if err != nil {
		return err
	}

	log.Debug().Msg("checking for pending deployments")
	deployments, err := d.backend.PendingDeployments(ctx, deviceID, tok.Raw)
	if err != nil {
		return agenterr.New(agenterr.KindDeploy, "poll for pending deployments", err)
	}

	for _, dep := range deployments {
		log.Info().Str("deployment_id", dep.ID).Str("type", string(dep.DeploymentType)).
			Msg("received deployment task")
		if err := d.execute(ctx, dep, tok.Raw); err != nil {
			log.Error().Err(err).Str("deployment_id", dep.ID).Msg("deployment failed")
		}
	}
	return nil
}

func (d *Deployer) execute(ctx context.Context, dep Deployment, token string) error {
	_ = d.backend.UpdateDeploymentStatus(ctx, dep.ID, token, StatusUpdate{Status: "in_progress"})
	_ = d.backend.SendDeploymentLog(ctx, dep.ID, token, Log{
		Level:   LogInfo,
		Message: fmt.Sprintf("Starting %s deployment...", dep.DeploymentType),
	})

	err := d.runExecutor(ctx, dep)

	if err == nil {
		_ = d.backend.UpdateDeploymentStatus(ctx, dep.ID, token, StatusUpdate{Status: "success"})
		_ = d.backend.SendDeploymentLog(ctx, dep.ID, token, Log{
			Level:   LogInfo,
			Message: "Deployment completed successfully!",
		})
		return nil
	}

	msg := err.Error()
	_ = d.backend.UpdateDeploymentStatus(ctx, dep.ID, token, StatusUpdate{Status: "failed", ErrorMessage: &msg})
	_ = d.backend.SendDeploymentLog(ctx, dep.ID, token, Log{
		Level:   LogError,
		Message: "Deployment failed: " + msg,
	})
	return err
}

func (d *Deployer) runExecutor(ctx context.Context, dep Deployment) error {
	switch dep.DeploymentType {
	case TypeDocker:
		cfg := parseDockerConfig(dep.Config)
		return DeployDocker(ctx, cfg.Image, cfg.Tag, d.registries)

	case TypeGit:
		cfg := parseGitConfig(dep.Config)
		targetDir := filepath.Join(d.deploymentsRoot, dep.ID)
		return DeployGit(ctx, cfg.RepoURL, cfg.Branch, cfg.InstallCmd, cfg.RunCmd, targetDir)

	case TypeDockerCompose:
		targetDir := filepath.Join(d.deploymentsRoot, dep.ID)
		return DeployCompose(ctx, targetDir)

	default:
		return agenterr.Newf(agenterr.KindDeploy, "unsupported deployment type: %s", dep.DeploymentType)
	}
}
