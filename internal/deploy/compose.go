package deploy

import (
	"context"
	"os"
	"os/exec"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/alog"
)

// DeployCompose runs `docker compose up -d --build` in targetDir, falling
// back to the legacy standalone `docker-compose up -d --build` binary if
// the plugin subcommand fails or is not installed.
func DeployCompose(ctx context.Context, targetDir string) error {
	log := alog.WithComponent("deploy.compose")
	log.Info().Str("target", targetDir).Msg("deploying with docker compose")

	if _, err := os.Stat(targetDir); err != nil {
		return agenterr.New(agenterr.KindDeploy, "target directory does not exist: "+targetDir, err)
	}

	modern := exec.CommandContext(ctx, "docker", "compose", "up", "-d", "--build")
	modern.Dir = targetDir
	if err := modern.Run(); err == nil {
		log.Info().Msg("docker compose deployment complete")
		return nil
	}

	log.Debug().Msg("'docker compose' failed or missing, trying legacy docker-compose")
	legacy := exec.CommandContext(ctx, "docker-compose", "up", "-d", "--build")
	legacy.Dir = targetDir
	if err := legacy.Run(); err != nil {
		return agenterr.New(agenterr.KindDeploy, "docker compose up failed", err)
	}

	log.Info().Msg("docker compose deployment complete")
	return nil
}
