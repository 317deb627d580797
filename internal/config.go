package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/fehu/internal/models"
	"github.com/starford/fehu/internal/policy"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Artifacts ArtifactsConfig   `yaml:"artifacts"`
	Auth      AuthConfig        `yaml:"auth"`
	Lending   LendingConfig     `yaml:"lending"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Artifacts.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Lending.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ArtifactsConfig holds the directory proof uploads are stored in.
type ArtifactsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the artifacts configuration.
func (c *ArtifactsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PrincipalConfig maps one bearer token to a principal.
type PrincipalConfig struct {
	Token string `yaml:"token"`
	ID    string `yaml:"id"`
	Role  string `yaml:"role"`
}

// Validate validates a principal entry.
func (c *PrincipalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Role, validation.Required,
			validation.In(string(models.RoleBorrower), string(models.RoleStaff))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how the acting principal is resolved:
//   - "disabled" (default): no authentication; the actor is taken from the
//     X-Actor-Id / X-Actor-Role request headers. Local dev only.
//   - "token": Bearer token authentication against the principals table.
type AuthConfig struct {
	Mode       string            `yaml:"mode"`
	Principals []PrincipalConfig `yaml:"principals"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && len(c.Principals) == 0 {
		return fmt.Errorf("auth: mode is %q but no principals are configured", AuthModeToken)
	}
	for i := range c.Principals {
		if err := c.Principals[i].Validate(); err != nil {
			return fmt.Errorf("auth: principal %d: %w", i, err)
		}
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// LendingConfig holds the lending policy. This section is hot-reloadable:
// the running service watches the config file and applies changes here
// without a restart.
type LendingConfig struct {
	LoanPeriodDays int    `yaml:"loan_period_days"`
	GraceHours     int    `yaml:"grace_hours"`
	SweepInterval  string `yaml:"sweep_interval"`
	ReceiptPrefix  string `yaml:"receipt_prefix"`
}

// Validate validates the lending configuration.
func (c *LendingConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LoanPeriodDays, validation.Required, validation.Min(1)),
		validation.Field(&c.GraceHours, validation.Min(0)),
		validation.Field(&c.ReceiptPrefix, validation.Required),
	); err != nil {
		return err
	}
	if _, err := time.ParseDuration(c.SweepInterval); err != nil {
		return fmt.Errorf("lending: bad sweep_interval %q: %w", c.SweepInterval, err)
	}
	return nil
}

// Policy converts the lending section into a policy snapshot.
func (c *LendingConfig) Policy() policy.Policy {
	interval, err := time.ParseDuration(c.SweepInterval)
	if err != nil || interval <= 0 {
		interval = policy.Default.SweepInterval
	}
	return policy.Policy{
		LoanPeriodDays: c.LoanPeriodDays,
		GraceHours:     c.GraceHours,
		SweepInterval:  interval,
		ReceiptPrefix:  c.ReceiptPrefix,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./fehu.db",
		},
		Artifacts: ArtifactsConfig{
			Path: "./artifacts",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Lending: LendingConfig{
			LoanPeriodDays: policy.Default.LoanPeriodDays,
			GraceHours:     policy.Default.GraceHours,
			SweepInterval:  policy.Default.SweepInterval.String(),
			ReceiptPrefix:  policy.Default.ReceiptPrefix,
		},
	}
}
