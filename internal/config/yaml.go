// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	applog "dspctl/internal/log"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug    bool           `yaml:"debug"`     // Enable debug logging.
	LogLevel string         `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Settings SettingsConfig `yaml:"settings"`  // Preference storage.
	Engine   EngineConfig   `yaml:"engine"`    // Engine backend selection.
	Remote   RemoteConfig   `yaml:"remote"`    // Wire protocol connection, used by the remote backend.
	Endpoint EndpointConfig `yaml:"endpoint"`  // Simulated endpoint served by the endpoint command.
	Status   StatusConfig   `yaml:"status"`    // UDP status datagrams.
}

// SettingsConfig locates the preferences and the files they reference.
type SettingsConfig struct {
	Path       string `yaml:"path"`        // Preference YAML file.
	Watch      bool   `yaml:"watch"`       // Sync whenever the preference file changes.
	LibraryDir string `yaml:"library_dir"` // Base directory for declipping filters, scripts and impulse responses.
}

// EngineConfig selects and tunes the engine backend.
type EngineConfig struct {
	Backend      string        `yaml:"backend"`       // "embedded" or "remote".
	SampleRate   float64       `yaml:"sample_rate"`   // Embedded engine rate when no output device reports one.
	OutputDevice int           `yaml:"output_device"` // PortAudio output device index (-1 for default).
	ReleaseGrace time.Duration `yaml:"release_grace"` // Delay before a closed embedded handle is freed.
	DepthCompat  string        `yaml:"depth_compat"`  // Field surround depth path, "direct" or "wrapper".
}

// RemoteConfig describes the connection to a remote endpoint.
type RemoteConfig struct {
	Transport   string        `yaml:"transport"`    // "websocket", "nats" or "logging".
	URL         string        `yaml:"url"`          // Websocket or NATS server URL.
	Subject     string        `yaml:"subject"`      // NATS subject the endpoint listens on.
	Session     string        `yaml:"session"`      // Session UUID; generated when empty.
	Priority    int32         `yaml:"priority"`     // Handshake priority.
	CallTimeout time.Duration `yaml:"call_timeout"` // Per call timeout.
}

// EndpointConfig configures the simulated endpoint.
type EndpointConfig struct {
	Listen     string  `yaml:"listen"`      // Websocket listen address.
	NATSURL    string  `yaml:"nats_url"`    // Also serve on NATS when set.
	Subject    string  `yaml:"subject"`     // NATS subject.
	SampleRate int32   `yaml:"sample_rate"` // Reported engine rate.
	Reject     []int32 `yaml:"reject"`      // Slots the endpoint refuses.
}

// StatusConfig holds settings for the UDP status publisher.
type StatusConfig struct {
	Enabled  bool          `yaml:"enabled"`    // Send status datagrams.
	Target   string        `yaml:"udp_target"` // Target address and port (e.g., "127.0.0.1:9090").
	Interval time.Duration `yaml:"interval"`   // Interval between datagrams.
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Settings: SettingsConfig{
			Path:  DefaultSettingsPath,
			Watch: true,
		},
		Engine: EngineConfig{
			Backend:      DefaultBackend,
			SampleRate:   DefaultSampleRate,
			OutputDevice: MinDeviceID,
			ReleaseGrace: DefaultReleaseGrace,
			DepthCompat:  DefaultDepthCompat,
		},
		Remote: RemoteConfig{
			Transport:   DefaultTransport,
			URL:         DefaultRemoteURL,
			Subject:     DefaultSubject,
			Priority:    DefaultPriority,
			CallTimeout: DefaultCallTimeout,
		},
		Endpoint: EndpointConfig{
			Listen:     DefaultEndpointListen,
			Subject:    DefaultSubject,
			SampleRate: DefaultSampleRate,
		},
		Status: StatusConfig{
			Target:   DefaultStatusTarget,
			Interval: DefaultStatusInterval,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "dspctl.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is unknown", c.LogLevel))
	}
	if c.Settings.Path == "" {
		errs = append(errs, errors.New("settings.path must be set"))
	}

	switch c.Engine.Backend {
	case BackendEmbedded, BackendRemote:
	default:
		errs = append(errs, fmt.Errorf("engine.backend %q must be %q or %q", c.Engine.Backend, BackendEmbedded, BackendRemote))
	}
	if c.Engine.SampleRate < MinSampleRate || c.Engine.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("engine.sample_rate %v out of range [%d, %d]", c.Engine.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if c.Engine.OutputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("engine.output_device %d is invalid", c.Engine.OutputDevice))
	}
	if c.Engine.ReleaseGrace < 0 {
		errs = append(errs, errors.New("engine.release_grace must not be negative"))
	}
	switch c.Engine.DepthCompat {
	case "direct", "wrapper":
	default:
		errs = append(errs, fmt.Errorf("engine.depth_compat %q must be \"direct\" or \"wrapper\"", c.Engine.DepthCompat))
	}

	switch c.Remote.Transport {
	case TransportWebSocket, TransportNATS:
		if c.Remote.URL == "" {
			errs = append(errs, fmt.Errorf("remote.url must be set for the %s transport", c.Remote.Transport))
		}
	case TransportLogging:
	default:
		errs = append(errs, fmt.Errorf("remote.transport %q is unknown", c.Remote.Transport))
	}
	if c.Remote.Transport == TransportNATS && c.Remote.Subject == "" {
		errs = append(errs, errors.New("remote.subject must be set for the nats transport"))
	}
	if c.Remote.Session != "" {
		if _, err := uuid.Parse(c.Remote.Session); err != nil {
			errs = append(errs, fmt.Errorf("remote.session: %w", err))
		}
	}
	if c.Remote.CallTimeout <= 0 {
		errs = append(errs, errors.New("remote.call_timeout must be positive"))
	}

	if c.Status.Enabled {
		if c.Status.Target == "" {
			errs = append(errs, errors.New("status.udp_target must be set when status is enabled"))
		} else if !strings.Contains(c.Status.Target, ":") {
			errs = append(errs, fmt.Errorf("status.udp_target '%s' appears invalid (missing port?)", c.Status.Target))
		}
		if c.Status.Interval <= 0 {
			errs = append(errs, errors.New("status.interval must be positive when status is enabled"))
		}
	}
	return errors.Join(errs...)
}

// SessionID returns the configured session, or a fresh one when none is
// set. The value is remembered for later calls.
func (c *Config) SessionID() uuid.UUID {
	if id, err := uuid.Parse(c.Remote.Session); err == nil {
		return id
	}
	id := uuid.New()
	c.Remote.Session = id.String()
	return id
}

// applyEnvOverrides replaces values with ENV_* environment variables.
// Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Debugf("configuration: overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Debugf("configuration: overriding log_level from env: %s", val)
	}
	// ENV_SETTINGS_PATH
	if val, ok := os.LookupEnv("ENV_SETTINGS_PATH"); ok {
		cfg.Settings.Path = val
		applog.Debugf("configuration: overriding settings.path from env: %s", val)
	}
	// ENV_BACKEND
	if val, ok := os.LookupEnv("ENV_BACKEND"); ok {
		cfg.Engine.Backend = val
		applog.Debugf("configuration: overriding engine.backend from env: %s", val)
	}

	// ENV_REMOTE_{...}
	// These are specific to the wire protocol connection.

	// ENV_REMOTE_TRANSPORT
	if val, ok := os.LookupEnv("ENV_REMOTE_TRANSPORT"); ok {
		cfg.Remote.Transport = val
		applog.Debugf("configuration: overriding remote.transport from env: %s", val)
	}
	// ENV_REMOTE_URL
	if val, ok := os.LookupEnv("ENV_REMOTE_URL"); ok {
		cfg.Remote.URL = val
		applog.Debugf("configuration: overriding remote.url from env: %s", val)
	}
	// ENV_STATUS_INTERVAL
	if val, ok := os.LookupEnv("ENV_STATUS_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Status.Interval = dur
			applog.Debugf("configuration: overriding status.interval from env: %s", dur)
		}
	}
}
