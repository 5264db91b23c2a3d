package deploy

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/alog"
)

// SyncRepository clones repoURL into targetDir on first sync, or pulls
// branch if targetDir already holds a checkout.
func SyncRepository(ctx context.Context, repoURL, branch, targetDir string) error {
	log := alog.WithComponent("deploy.git")
	log.Info().Str("repo", repoURL).Str("branch", branch).Str("target", targetDir).Msg("syncing git repository")

	if dirExists(targetDir) {
		log.Debug().Msg("target directory exists, pulling updates")
		cmd := exec.CommandContext(ctx, "git", "pull", "origin", branch)
		cmd.Dir = targetDir
		if err := cmd.Run(); err != nil {
			return agenterr.New(agenterr.KindDeploy, "git pull failed", err)
		}
		return nil
	}

	log.Debug().Msg("cloning repository")
	if err := exec.CommandContext(ctx, "git", "clone", "-b", branch, repoURL, targetDir).Run(); err != nil {
		return agenterr.New(agenterr.KindDeploy, "git clone failed", err)
	}
	return nil
}

// DeployGit syncs repoURL at branch into targetDir, runs installCmd if
// given, then launches runCmd detached (backgrounded via nohup, with its
// own log file) if given.
func DeployGit(ctx context.Context, repoURL, branch, installCmd, runCmd, targetDir string) error {
	log := alog.WithComponent("deploy.git")
	log.Info().Str("repo", repoURL).Str("branch", branch).Msg("deploying git repository")

	if err := SyncRepository(ctx, repoURL, branch, targetDir); err != nil {
		return err
	}

	if installCmd != "" {
		log.Info().Str("cmd", installCmd).Msg("running install command")
		cmd := exec.CommandContext(ctx, "bash", "-c", installCmd)
		cmd.Dir = targetDir
		if err := cmd.Run(); err != nil {
			return agenterr.New(agenterr.KindDeploy, "install command failed", err)
		}
	}

	if runCmd != "" {
		log.Info().Str("cmd", runCmd).Msg("starting application")
		// Backgrounded the same way an operator running this at a shell
		// would; the agent does not supervise the resulting process.
		bg := exec.Command("bash", "-c", fmt.Sprintf("nohup %s > app.log 2>&1 &", runCmd))
		bg.Dir = targetDir
		if err := bg.Run(); err != nil {
			log.Warn().Err(err).Msg("failed to launch application, continuing")
		}
	}

	log.Info().Msg("git deployment complete")
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
