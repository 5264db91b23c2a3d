package deploy

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// initBareRepo creates a local git repository with one commit and returns
// its filesystem path, usable as a clone source without any network access.
func initBareRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available on PATH")
	}

	src := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = src
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}

	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(src, "README.md"), []byte("hello\n"), 0o644))
	run("add", "README.md")
	run("commit", "-m", "initial")

	return src
}

func TestDeployGit_ClonesOnFirstDeploy(t *testing.T) {
	repo := initBareRepo(t)
	target := filepath.Join(t.TempDir(), "checkout")

	err := DeployGit(context.Background(), repo, "main", "", "", target)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(target, "README.md"))
	require.NoError(t, err)
}

func TestDeployGit_PullsOnSubsequentDeploy(t *testing.T) {
	repo := initBareRepo(t)
	target := filepath.Join(t.TempDir(), "checkout")

	require.NoError(t, DeployGit(context.Background(), repo, "main", "", "", target))

	cmd := exec.Command("git", "commit", "--allow-empty", "-m", "second")
	cmd.Dir = repo
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git commit: %s", out)

	require.NoError(t, DeployGit(context.Background(), repo, "main", "", "", target))
}

func TestDeployGit_RunsInstallCommand(t *testing.T) {
	repo := initBareRepo(t)
	target := filepath.Join(t.TempDir(), "checkout")

	err := DeployGit(context.Background(), repo, "main", "touch installed.marker", "", target)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(target, "installed.marker"))
	require.NoError(t, err, "install command should have run inside the checkout")
}

func TestDeployGit_InstallCommandFailureIsPropagated(t *testing.T) {
	repo := initBareRepo(t)
	target := filepath.Join(t.TempDir(), "checkout")

	err := DeployGit(context.Background(), repo, "main", "exit 1", "", target)
	require.Error(t, err)
}
