package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cadbridge/cadbridge/pkg/activity"
	"github.com/cadbridge/cadbridge/pkg/faults"
	"github.com/cadbridge/cadbridge/pkg/plugin/client"
	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
	"github.com/cadbridge/cadbridge/pkg/plugin/server"
	"github.com/cadbridge/cadbridge/pkg/telemetry"
)

// DefaultHeartbeatInterval is reserved; nothing is emitted at this interval.
const DefaultHeartbeatInterval = 60 * time.Second

// Config is the root of a cadbridge configuration file.
type Config struct {
	Server    server.Config    `yaml:"server"`
	Client    client.Config    `yaml:"client"`
	Bridge    BridgeConfig     `yaml:"bridge"`
	Errors    ErrorsConfig     `yaml:"errors"`
	Activity  ActivityConfig   `yaml:"activity"`
	Telemetry telemetry.Config `yaml:"telemetry" validate:"-"`

	// HeartbeatInterval is accepted for compatibility with older files.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" validate:"gte=0"`
}

// BridgeConfig controls mode selection and bridge behavior.
type BridgeConfig struct {
	// UsePluginMode tries the plugin connection before the other modes.
	UsePluginMode bool `yaml:"use_plugin_mode"`

	// Retry retries recoverable failures of bridge operations.
	Retry bool `yaml:"retry"`

	// DirectCommands lists the commands implemented in direct mode.
	DirectCommands []string `yaml:"direct_commands" validate:"dive,required"`
}

// ErrorsConfig configures the error handler.
type ErrorsConfig struct {
	MaxHistory    int           `yaml:"max_history" validate:"gte=1"`
	SummaryWindow time.Duration `yaml:"summary_window" validate:"gt=0"`

	// Policies override the built-in retry policy of a category field by
	// field; fields left out keep their default.
	Policies map[faults.Category]PolicyOverride `yaml:"policies" validate:"dive"`
}

// PolicyOverride is a partial retry policy.
type PolicyOverride struct {
	MaxRetries    *int           `yaml:"max_retries" validate:"omitempty,gte=0,lte=20"`
	InitialDelay  *time.Duration `yaml:"initial_delay" validate:"omitempty,gte=0"`
	BackoffFactor *float64       `yaml:"backoff_factor" validate:"omitempty,gte=1"`
	Recoverable   *bool          `yaml:"recoverable"`
}

// ActivityConfig configures the activity log.
type ActivityConfig struct {
	Enabled bool `yaml:"enabled"`

	activity.Config `yaml:",inline"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: server.DefaultConfig(),
		Client: client.DefaultConfig(),
		Bridge: BridgeConfig{
			UsePluginMode: true,
			DirectCommands: []string{
				protocol.CommandGetDesignInfo,
				protocol.CommandGetComponentHierarchy,
				protocol.CommandCreateSketch,
			},
		},
		Errors: ErrorsConfig{
			MaxHistory:    faults.DefaultMaxHistory,
			SummaryWindow: faults.DefaultSummaryWindow,
		},
		Activity: ActivityConfig{
			Config: activity.Config{Path: "cadbridge-activity.db"},
		},
		Telemetry:         *telemetry.DefaultConfig(),
		HeartbeatInterval: DefaultHeartbeatInterval,
	}
}

// Load reads the YAML file at path over the defaults. Environment variables
// in the file are expanded. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := Parse([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document into cfg and validates the result.
func Parse(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := CheckSchema(raw); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg.Validate()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and retry policy categories.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	for category := range c.Errors.Policies {
		if !category.Valid() {
			return fmt.Errorf("invalid config: unknown error category %q", category)
		}
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}
	return nil
}

// Policies returns the built-in retry table with the overrides applied.
func (c *Config) Policies() faults.PolicyTable {
	defaults := faults.DefaultPolicies()
	overrides := make(faults.PolicyTable, len(c.Errors.Policies))
	for category, o := range c.Errors.Policies {
		p := defaults.Lookup(category)
		if o.MaxRetries != nil {
			p.MaxRetries = *o.MaxRetries
		}
		if o.InitialDelay != nil {
			p.InitialDelay = *o.InitialDelay
		}
		if o.BackoffFactor != nil {
			p.BackoffFactor = *o.BackoffFactor
		}
		if o.Recoverable != nil {
			p.Recoverable = *o.Recoverable
		}
		overrides[category] = p
	}
	return defaults.Merge(overrides)
}

// ErrorHandlerOptions returns the faults options this configuration implies.
func (c *Config) ErrorHandlerOptions() []faults.Option {
	return []faults.Option{
		faults.WithPolicies(c.Policies()),
		faults.WithMaxHistory(c.Errors.MaxHistory),
		faults.WithSummaryWindow(c.Errors.SummaryWindow),
	}
}
