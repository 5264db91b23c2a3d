package deploy

import "encoding/json"

// Type is the kind of deployment a Deployment task describes.
type Type string

const (
	TypeDocker        Type = "docker"
	TypeGit           Type = "git"
	TypeDockerCompose Type = "docker_compose"
)

// Deployment is a deployment task received from the backend.
type Deployment struct {
	ID             string          `json:"id"`
	DeviceID       string          `json:"device_id"`
	DeploymentType Type            `json:"deployment_type"`
	Config         json.RawMessage `json:"config"`
	Status         string          `json:"status"`
}

// StatusUpdate reports deployment progress back to the backend.
type StatusUpdate struct {
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// LogLevel is the severity of a deployment log line streamed to the
// backend.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
	LogDebug LogLevel = "debug"
)

// Log is a single log line streamed to the backend during deployment.
type Log struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

// dockerConfig is the config shape for a TypeDocker deployment.
type dockerConfig struct {
	Image string `json:"image"`
	Tag   string `json:"tag"`
}

// gitConfig is the config shape for a TypeGit deployment.
type gitConfig struct {
	RepoURL    string `json:"repo_url"`
	Branch     string `json:"branch"`
	InstallCmd string `json:"install_cmd"`
	RunCmd     string `json:"run_cmd"`
}

func parseDockerConfig(raw json.RawMessage) dockerConfig {
	cfg := dockerConfig{Tag: "latest"}
	_ = json.Unmarshal(raw, &cfg)
	if cfg.Tag == "" {
		cfg.Tag = "latest"
	}
	return cfg
}

func parseGitConfig(raw json.RawMessage) gitConfig {
	cfg := gitConfig{Branch: "main"}
	_ = json.Unmarshal(raw, &cfg)
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	return cfg
}
