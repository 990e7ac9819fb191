// Package config loads Deskmate configuration. Values resolve in three
// layers: built-in defaults, an optional YAML file, then environment
// variables. Validate reports every missing required value in one error.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultInstruction is the system instruction the service-desk agent runs
// with unless overridden.
const DefaultInstruction = "You are a ServiceNow assistant. Use your tools to fulfill user requests. Be concise and helpful. " +
	"Important Rule 1: When listing items like incidents, do not use any sorting parameters as the backend does not support it. " +
	"If a user asks for 'recent' or 'latest' items, perform a standard list operation and inform the user that the results are not sorted. " +
	"Important Rule 2: After you successfully create an entity and get an ID back, if an immediate attempt to retrieve that same entity " +
	"fails with a 'Not Found' error, do not assume the creation failed. Instead, inform the user that the system might need a moment " +
	"to process the new record and suggest they try retrieving it again in a minute."

// EnvConfigPath names the environment variable that points Load at a
// config file when no explicit path is given.
const EnvConfigPath = "DESKMATE_CONFIG"

// ServiceNowConfig holds the ServiceNow instance credentials and the
// table/operation matrix the toolset exposes.
type ServiceNowConfig struct {
	InstanceURL string `yaml:"instance_url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`

	// NamePrefix overrides the tool name prefix. Defaults to "servicenow".
	NamePrefix string `yaml:"name_prefix"`

	// Tables optionally replaces the default table/operation matrix.
	// Operations are list, get, create, update.
	Tables map[string][]string `yaml:"tables"`
}

// ModelConfig selects the model provider and model.
type ModelConfig struct {
	// Provider is "openai" or "anthropic".
	Provider string `yaml:"provider"`

	// Name overrides the provider's default model when set.
	Name string `yaml:"name"`
}

// LogConfig controls structured log output.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// AgentConfig names the agent and sets its instruction.
type AgentConfig struct {
	Name        string `yaml:"name"`
	Instruction string `yaml:"instruction"`
}

// Config is the complete Deskmate configuration.
type Config struct {
	ServiceNow ServiceNowConfig `yaml:"servicenow"`
	Model      ModelConfig      `yaml:"model"`
	Log        LogConfig        `yaml:"log"`
	Agent      AgentConfig      `yaml:"agent"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider: "openai",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Agent: AgentConfig{
			Name:        "Deskmate",
			Instruction: DefaultInstruction,
		},
	}
}

// Load resolves the configuration: defaults, then the YAML file at path
// (falling back to $DESKMATE_CONFIG when path is empty; no file is fine),
// then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv() {
	envOverride(&c.ServiceNow.InstanceURL, "SERVICENOW_INSTANCE_URL")
	envOverride(&c.ServiceNow.Username, "SERVICENOW_USERNAME")
	envOverride(&c.ServiceNow.Password, "SERVICENOW_PASSWORD")
	envOverride(&c.Model.Provider, "DESKMATE_MODEL_PROVIDER")
	envOverride(&c.Model.Name, "DESKMATE_MODEL")
	envOverride(&c.Log.Level, "DESKMATE_LOG_LEVEL")
	envOverride(&c.Log.Format, "DESKMATE_LOG_FORMAT")
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// Validate checks the configuration and reports every problem in one error.
func (c *Config) Validate() error {
	var missing []string

	if c.ServiceNow.InstanceURL == "" {
		missing = append(missing, "servicenow.instance_url (SERVICENOW_INSTANCE_URL)")
	}

	if c.ServiceNow.Username == "" {
		missing = append(missing, "servicenow.username (SERVICENOW_USERNAME)")
	}

	if c.ServiceNow.Password == "" {
		missing = append(missing, "servicenow.password (SERVICENOW_PASSWORD)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported model provider %q (want openai or anthropic)", c.Model.Provider)
	}

	for table, ops := range c.ServiceNow.Tables {
		if table == "" {
			return fmt.Errorf("servicenow.tables contains an empty table name")
		}

		for _, op := range ops {
			switch op {
			case "list", "get", "create", "update":
			default:
				return fmt.Errorf("servicenow.tables.%s: unknown operation %q (want list, get, create or update)", table, op)
			}
		}
	}

	return nil
}
