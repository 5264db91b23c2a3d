package storage

// Settings is the agent's local configuration, persisted as settings.json
// and readable/writable independently of device.json so an operator can
// tune polling/logging without re-activating the device.
type Settings struct {
	LogLevel           string      `json:"log_level"`
	Backend            Backend     `json:"backend"`
	MqttBroker         MqttBroker  `json:"mqtt_broker"`
	IsPersistent       bool        `json:"is_persistent"`
	EnableSocketServer bool        `json:"enable_socket_server"`
	EnableMqttWorker   bool        `json:"enable_mqtt_worker"`
	EnablePoller       bool        `json:"enable_poller"`
	PollingIntervalSecs uint64     `json:"polling_interval_secs"`
	Hardware           Hardware    `json:"hardware"`
	Registries         []RegistryAuth `json:"registries,omitempty"`
}

// RegistryAuth pairs a container registry host prefix with credentials the
// deployer should use to `docker login` before pulling images from that
// registry. Matching is a simple prefix test against the image reference,
// e.g. HostPrefix "registry.example.com" matches
// "registry.example.com/team/app:1.0".
type RegistryAuth struct {
	HostPrefix string `json:"host_prefix"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// Backend holds the URL of the control-plane API this agent talks to.
type Backend struct {
	BaseURL string `json:"base_url"`
}

// MqttBroker is carried over from the original for parity; the agent's
// supervisor does not launch an MQTT worker (spec Non-goal), but the field
// is still round-tripped so an operator's existing settings.json is not
// silently truncated on upgrade.
type MqttBroker struct {
	Host       string `json:"host"`
	Port       uint16 `json:"port"`
	TLS        bool   `json:"tls"`
	CACertPath string `json:"ca_cert_path,omitempty"`
}

// Hardware toggles device-specific integrations the agent may expose to
// deployed workflows.
type Hardware struct {
	EnableCamera bool   `json:"enable_camera"`
	EnableGPIO   bool   `json:"enable_gpio"`
	CameraDevice string `json:"camera_device,omitempty"`
}

// DefaultSettings returns the documented defaults used when settings.json
// does not exist yet (first install) or a field is absent from an older
// file on disk.
func DefaultSettings() Settings {
	return Settings{
		LogLevel: "info",
		Backend: Backend{
			BaseURL: "https://api.ajime.dev",
		},
		MqttBroker: MqttBroker{
			Host: "localhost",
			Port: 1883,
			TLS:  false,
		},
		IsPersistent:        true,
		EnableSocketServer:  false,
		EnableMqttWorker:    false,
		EnablePoller:        true,
		PollingIntervalSecs: 30,
		Hardware: Hardware{
			EnableCamera: false,
			EnableGPIO:   false,
		},
	}
}

// LoadSettings reads settings.json from layout, falling back to
// DefaultSettings when the file does not exist.
func LoadSettings(l Layout) (Settings, error) {
	f := NewFile(l.SettingsFile())
	if !f.Exists() {
		return DefaultSettings(), nil
	}
	s := DefaultSettings()
	if err := f.ReadJSON(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes settings.json (non-atomically; settings are operator-edited
// and not security sensitive the way device.json's token is).
func (s Settings) Save(l Layout) error {
	return NewFile(l.SettingsFile()).WriteJSON(s)
}
