package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	AccomplishmentsRemote = "remote"
	AccomplishmentsLocal  = "local"
)

// Config models teamops.yml.
type Config struct {
	Team struct {
		Name     string   `yaml:"name" json:"name"`
		Founders []string `yaml:"founders" json:"founders"`
	} `yaml:"team" json:"team"`
	Companies       []CompanyConfig `yaml:"companies" json:"companies"`
	Accomplishments struct {
		Store string `yaml:"store" json:"store"`
		File  string `yaml:"file" json:"file"`
	} `yaml:"accomplishments" json:"accomplishments"`
	DocSync  DocSyncConfig   `yaml:"docsync" json:"docsync"`
	Photos   PhotoConfig     `yaml:"photos" json:"photos"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks"`
}

type CompanyConfig struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

type DocSyncConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	KeyringService  string `yaml:"keyring_service" json:"keyring_service"`
	KeyringFileDir  string `yaml:"keyring_file_dir" json:"keyring_file_dir"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	EntryDateLayout string `yaml:"entry_date_layout" json:"entry_date_layout"`
}

type PhotoConfig struct {
	Bucket  string `yaml:"bucket" json:"bucket"`
	Region  string `yaml:"region" json:"region"`
	Profile string `yaml:"profile" json:"profile"`
	Prefix  string `yaml:"prefix" json:"prefix"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events" json:"events"`
	Secret         string   `yaml:"secret" json:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled" json:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with teamops config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Team.Name) == "" {
		return fmt.Errorf("config.team.name is required")
	}
	for i, f := range c.Team.Founders {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("config.team.founders[%d] is empty", i)
		}
	}
	seen := map[string]bool{}
	for i, co := range c.Companies {
		if co.ID == "" || co.Name == "" {
			return fmt.Errorf("config.companies[%d] requires id and name", i)
		}
		if seen[co.ID] {
			return fmt.Errorf("company %s defined twice", co.ID)
		}
		seen[co.ID] = true
	}
	switch c.Accomplishments.Store {
	case "", AccomplishmentsRemote:
	case AccomplishmentsLocal:
		if c.Accomplishments.File == "" {
			return fmt.Errorf("config.accomplishments.file is required for local store")
		}
	default:
		return fmt.Errorf("config.accomplishments.store must be remote or local")
	}
	if c.DocSync.Enabled && c.DocSync.Endpoint == "" {
		return fmt.Errorf("config.docsync.endpoint is required when docsync is enabled")
	}
	if c.Photos.Bucket != "" && c.Photos.Region == "" {
		return fmt.Errorf("config.photos.region is required with a bucket")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// IsFounderEmail reports whether the email is on the founder allow-list.
func (c *Config) IsFounderEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if c == nil || email == "" {
		return false
	}
	for _, f := range c.Team.Founders {
		if strings.ToLower(strings.TrimSpace(f)) == email {
			return true
		}
	}
	return false
}

// AccomplishmentStore returns the configured store kind.
func (c *Config) AccomplishmentStore() string {
	if c == nil || c.Accomplishments.Store == "" {
		return AccomplishmentsRemote
	}
	return c.Accomplishments.Store
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "teamops.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(teamName string) string {
	return fmt.Sprintf(defaultTemplate, teamName)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, "TeamOps"))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `team:
  name: %s
  founders: []

companies:
  - id: internal
    name: Internal

accomplishments:
  store: remote

docsync:
  enabled: false
  endpoint: https://docs.googleapis.com
  keyring_service: teamops
  timeout_seconds: 10
  entry_date_layout: "Jan 2, 2006"

photos:
  prefix: task-photos/
`
