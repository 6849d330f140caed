package commands

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/plexmcp/plexmcp/pkg/breaker"
	mcpproxy "github.com/plexmcp/plexmcp/pkg/mcp-proxy"
)

// fileConfig mirrors the YAML layout of the gateway config file.
type fileConfig struct {
	RequestTimeout time.Duration           `mapstructure:"request_timeout"`
	ShutdownGrace  time.Duration           `mapstructure:"shutdown_grace"`
	Upstreams      map[string]upstreamSpec `mapstructure:"upstreams"`
	Breaker        breakerSpec             `mapstructure:"breaker"`
	Retry          retrySpec               `mapstructure:"retry"`
}

type upstreamSpec struct {
	Transport string            `mapstructure:"transport"`
	Endpoint  string            `mapstructure:"endpoint"`
	Command   string            `mapstructure:"command"`
	Args      []string          `mapstructure:"args"`
	Env       map[string]string `mapstructure:"env"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	Auth      authSpec          `mapstructure:"auth"`
}

type authSpec struct {
	Type     string `mapstructure:"type"`
	Token    string `mapstructure:"token"`
	Header   string `mapstructure:"header"`
	Value    string `mapstructure:"value"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type breakerSpec struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	Window           time.Duration `mapstructure:"window"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	HalfOpenTrials   uint32        `mapstructure:"half_open_trials"`
}

type retrySpec struct {
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	MaxAttempts uint          `mapstructure:"max_attempts"`
}

// loadConfig reads the gateway config file. An explicit --config path must
// exist; without one the loader falls back to gateway.yaml in the working
// directory.
func loadConfig(path string) (*fileConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gateway")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("GATEWAY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if len(cfg.Upstreams) == 0 {
		return nil, fmt.Errorf("config defines no upstreams")
	}
	return &cfg, nil
}

func (s *upstreamSpec) transportConfig(id string) (mcpproxy.TransportConfig, error) {
	auth, err := s.Auth.authConfig()
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", id, err)
	}
	base := mcpproxy.BaseConfig{Auth: auth, Timeout: s.Timeout}

	switch mcpproxy.TransportKind(s.Transport) {
	case mcpproxy.TransportHTTP:
		if s.Endpoint == "" {
			return nil, fmt.Errorf("upstream %s: http transport requires an endpoint", id)
		}
		return &mcpproxy.HTTPConfig{BaseConfig: base, Endpoint: s.Endpoint}, nil
	case mcpproxy.TransportSSE:
		if s.Endpoint == "" {
			return nil, fmt.Errorf("upstream %s: sse transport requires an endpoint", id)
		}
		return &mcpproxy.SSEConfig{BaseConfig: base, Endpoint: s.Endpoint}, nil
	case mcpproxy.TransportStdio:
		if s.Command == "" {
			return nil, fmt.Errorf("upstream %s: stdio transport requires a command", id)
		}
		return &mcpproxy.StdioConfig{BaseConfig: base, Command: s.Command, Args: s.Args, Env: s.Env}, nil
	default:
		return nil, fmt.Errorf("upstream %s: unknown transport %q", id, s.Transport)
	}
}

func (s *authSpec) authConfig() (mcpproxy.AuthConfig, error) {
	switch s.Type {
	case "", "none":
		return mcpproxy.AuthNone{}, nil
	case "bearer":
		return mcpproxy.AuthBearer{Token: s.Token}, nil
	case "apikey":
		return mcpproxy.AuthAPIKey{Header: s.Header, Value: s.Value}, nil
	case "basic":
		return mcpproxy.AuthBasic{Username: s.Username, Password: s.Password}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", s.Type)
	}
}

// buildClient turns the file config into a ready proxy client.
func buildClient(cfg *fileConfig) (*mcpproxy.Client, error) {
	upstreams := make(map[string]mcpproxy.TransportConfig, len(cfg.Upstreams))
	for id, spec := range cfg.Upstreams {
		tc, err := spec.transportConfig(id)
		if err != nil {
			return nil, err
		}
		upstreams[id] = tc
	}
	return mcpproxy.NewClient(upstreams, &mcpproxy.Options{
		RequestTimeout: cfg.RequestTimeout,
		ShutdownGrace:  cfg.ShutdownGrace,
		Retry: mcpproxy.RetryPolicy{
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			MaxAttempts: cfg.Retry.MaxAttempts,
		},
		Breaker: breaker.Config{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Window:           cfg.Breaker.Window,
			Cooldown:         cfg.Breaker.Cooldown,
			HalfOpenTrials:   cfg.Breaker.HalfOpenTrials,
		},
		Logger: logger,
	}), nil
}
