package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Model provider identifiers. Selection is a configuration-time choice;
// the two providers are never mixed mid-session.
const (
	ProviderHosted = "hosted"
	ProviderOllama = "ollama"
)

// Config is the single configuration object built at startup and passed to
// each client constructor. Whether a backend is configured is a pure
// function of this object.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Model        ModelConfig        `yaml:"model"`
	Jenkins      JenkinsConfig      `yaml:"jenkins"`
	ReportPortal ReportPortalConfig `yaml:"reportportal"`
	Jira         JiraConfig         `yaml:"jira"`
}

// ServerConfig holds the HTTP listen settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ModelConfig selects and configures the chat-completion backend.
type ModelConfig struct {
	Provider string `yaml:"provider"` // "hosted" or "ollama"

	// Hosted provider (OpenAI-compatible endpoint).
	Endpoint    string `yaml:"endpoint"`
	ModelID     string `yaml:"model_id"`
	AccessToken string `yaml:"access_token"`

	// Ollama provider. Model may be left empty; the client discovers one.
	OllamaHost  string `yaml:"ollama_host"`
	OllamaModel string `yaml:"ollama_model"`

	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// JenkinsConfig holds the CI system endpoint and credentials.
type JenkinsConfig struct {
	URL                string `yaml:"url"`
	Username           string `yaml:"username"`
	APIToken           string `yaml:"api_token"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// ReportPortalConfig holds the test-dashboard endpoint and credentials,
// scoped to one project.
type ReportPortalConfig struct {
	Endpoint           string `yaml:"endpoint"`
	UUID               string `yaml:"uuid"`
	Project            string `yaml:"project"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// JiraConfig holds the issue-tracker endpoint and credentials, scoped to
// one project.
type JiraConfig struct {
	URL                string `yaml:"url"`
	APIToken           string `yaml:"api_token"`
	ProjectKey         string `yaml:"project_key"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// Load builds a Config from an optional YAML file, with environment
// variables taking precedence over file values. An empty path skips the
// file entirely.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{Addr: ":8080"},
		Model:  ModelConfig{Provider: ProviderHosted, OllamaHost: "http://localhost:11434"},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides file values with environment variables. The names
// match the configuration surface documented for each backend.
func (c *Config) applyEnv() {
	setEnv(&c.Server.Addr, "ECHOBOT_ADDR")

	setEnv(&c.Model.Provider, "MODEL_PROVIDER")
	setEnv(&c.Model.Endpoint, "MODEL_API")
	setEnv(&c.Model.ModelID, "MODEL_ID")
	setEnv(&c.Model.AccessToken, "ACCESS_TOKEN")
	setEnv(&c.Model.OllamaHost, "OLLAMA_HOST")
	setEnv(&c.Model.OllamaModel, "OLLAMA_MODEL")
	setEnvBool(&c.Model.InsecureSkipVerify, "MODEL_INSECURE_SKIP_VERIFY")

	setEnv(&c.Jenkins.URL, "JENKINS_URL")
	setEnv(&c.Jenkins.Username, "JENKINS_USERNAME")
	setEnv(&c.Jenkins.APIToken, "JENKINS_API_TOKEN")
	setEnvBool(&c.Jenkins.InsecureSkipVerify, "JENKINS_INSECURE_SKIP_VERIFY")

	setEnv(&c.ReportPortal.Endpoint, "RP_ENDPOINT")
	setEnv(&c.ReportPortal.UUID, "RP_UUID")
	setEnv(&c.ReportPortal.Project, "RP_PROJECT")
	setEnvBool(&c.ReportPortal.InsecureSkipVerify, "RP_INSECURE_SKIP_VERIFY")

	setEnv(&c.Jira.URL, "JIRA_URL")
	setEnv(&c.Jira.APIToken, "JIRA_API_TOKEN")
	setEnv(&c.Jira.ProjectKey, "JIRA_PROJECT_KEY")
	setEnvBool(&c.Jira.InsecureSkipVerify, "JIRA_INSECURE_SKIP_VERIFY")
}

func setEnv(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setEnvBool(dst *bool, key string) {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	}
}

// Validate checks internal consistency. Absent backends are not an error;
// they only disable their commands.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderHosted, ProviderOllama:
	default:
		return fmt.Errorf("unknown model provider %q (must be %q or %q)",
			c.Model.Provider, ProviderHosted, ProviderOllama)
	}
	return nil
}

// JenkinsConfigured reports whether the CI backend has a complete
// configuration.
func (c *Config) JenkinsConfigured() bool {
	return c.Jenkins.URL != "" && c.Jenkins.Username != "" && c.Jenkins.APIToken != ""
}

// ReportPortalConfigured reports whether the test-dashboard backend has a
// complete configuration.
func (c *Config) ReportPortalConfigured() bool {
	return c.ReportPortal.Endpoint != "" && c.ReportPortal.UUID != "" && c.ReportPortal.Project != ""
}

// JiraConfigured reports whether the issue-tracker backend has a complete
// configuration.
func (c *Config) JiraConfigured() bool {
	return c.Jira.URL != "" && c.Jira.APIToken != "" && c.Jira.ProjectKey != ""
}

// ModelConfigured reports whether the selected model backend has a complete
// configuration.
func (c *Config) ModelConfigured() bool {
	switch c.Model.Provider {
	case ProviderOllama:
		return c.Model.OllamaHost != ""
	default:
		return c.Model.Endpoint != "" && c.Model.ModelID != "" && c.Model.AccessToken != ""
	}
}
