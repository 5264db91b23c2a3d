package deploy

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/alog"
)

// RegistryCredential pairs a container registry host prefix with the
// credentials DeployDocker should use to authenticate against it before
// pulling. Matching is a plain prefix test against the image reference, so
// a HostPrefix of "registry.example.com" matches
// "registry.example.com/team/app".
type RegistryCredential struct {
	HostPrefix string
	Username   string
	Password   string
}

// matchRegistry returns the first credential whose HostPrefix prefixes
// image, if any.
func matchRegistry(image string, registries []RegistryCredential) (RegistryCredential, bool) {
	for _, cred := range registries {
		if cred.HostPrefix != "" && strings.HasPrefix(image, cred.HostPrefix) {
			return cred, true
		}
	}
	return RegistryCredential{}, false
}

// dockerLogin authenticates to cred.HostPrefix, passing the password over
// stdin so it never appears in the process argument list.
func dockerLogin(ctx context.Context, cred RegistryCredential) error {
	cmd := exec.CommandContext(ctx, "docker", "login", cred.HostPrefix, "-u", cred.Username, "--password-stdin")
	cmd.Stdin = strings.NewReader(cred.Password)
	if err := cmd.Run(); err != nil {
		return agenterr.New(agenterr.KindDeploy, "docker login failed for "+cred.HostPrefix, err)
	}
	return nil
}

// DeployDocker pulls image:tag and (re)runs it as a detached container
// named after the image, shelling out to the docker CLI exactly as an
// operator would at a terminal. If registries contains a credential whose
// HostPrefix matches image, it pre-authenticates with `docker login`
// before pulling.
func DeployDocker(ctx context.Context, image, tag string, registries []RegistryCredential) error {
	log := alog.WithComponent("deploy.docker")
	fullImage := fmt.Sprintf("%s:%s", image, tag)
	log.Info().Str("image", fullImage).Msg("deploying docker image")

	if cred, ok := matchRegistry(image, registries); ok {
		log.Debug().Str("registry", cred.HostPrefix).Msg("pre-authenticating to registry")
		if err := dockerLogin(ctx, cred); err != nil {
			return err
		}
	}

	if err := exec.CommandContext(ctx, "docker", "pull", fullImage).Run(); err != nil {
		return agenterr.New(agenterr.KindDeploy, "docker pull failed for "+fullImage, err)
	}

	containerName := image
	if idx := strings.LastIndex(image, "/"); idx >= 0 {
		containerName = image[idx+1:]
	}

	// Stop/remove any existing container under this name; errors here are
	// expected (nothing to stop on first deploy) and intentionally ignored.
	_ = exec.CommandContext(ctx, "docker", "stop", containerName).Run()
	_ = exec.CommandContext(ctx, "docker", "rm", containerName).Run()

	runArgs := []string{"run", "-d", "--name", containerName, "--restart", "unless-stopped", fullImage}
	if err := exec.CommandContext(ctx, "docker", runArgs...).Run(); err != nil {
		return agenterr.New(agenterr.KindDeploy, "docker run failed for "+fullImage, err)
	}

	log.Info().Str("image", fullImage).Msg("docker image deployed")
	return nil
}
