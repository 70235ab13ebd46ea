// Package config loads the signflow settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dukex/signflow/pkg/mailer"
	"github.com/dukex/signflow/pkg/schedule"
	"github.com/dukex/signflow/pkg/storage"
	"github.com/dukex/signflow/pkg/template"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRetentionDays    = 30
	DefaultSweepSchedule    = "0 3 * * *"
	DefaultReminderDays     = 2
	DefaultReminderSchedule = "*/15 * * * *"
	DefaultDispatchSeconds  = 30
	DefaultLockTTLSeconds   = 30
	DefaultReturnQueue      = "signflow:returns"
)

// Settings is the structure of the signflow.yaml file.
type Settings struct {
	Retention RetentionSettings `yaml:"retention"`
	Reminders ReminderSettings  `yaml:"reminders"`
	Dispatch  DispatchSettings  `yaml:"dispatch"`
	Redis     RedisSettings     `yaml:"redis"`
	Storage   storage.Config    `yaml:"storage"`
	Mailer    mailer.Config     `yaml:"mailer"`
}

type RetentionSettings struct {
	PeriodDays int    `yaml:"period_days"`
	Schedule   string `yaml:"schedule"`
}

type ReminderSettings struct {
	LeadDays int    `yaml:"lead_days"`
	Schedule string `yaml:"schedule"`
}

// DispatchSettings drives the automatic sending of the next step.
type DispatchSettings struct {
	Enabled        *bool  `yaml:"enabled"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Subject        string `yaml:"subject"`
	Body           string `yaml:"body"`
}

// RedisSettings configures the distributed lock and the return queue. Both are off without an address.
type RedisSettings struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
	ReturnQueue    string `yaml:"return_queue"`
}

// Default returns the settings used when no file is given.
func Default() *Settings {
	settings := &Settings{}
	settings.applyDefaults()

	return settings
}

// Load reads the settings file at path. An empty path yields the defaults.
func Load(path string) (*Settings, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	settings.applyDefaults()

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &settings, nil
}

func (s *Settings) applyDefaults() {
	if s.Retention.PeriodDays == 0 {
		s.Retention.PeriodDays = DefaultRetentionDays
	}

	if s.Retention.Schedule == "" {
		s.Retention.Schedule = DefaultSweepSchedule
	}

	if s.Reminders.LeadDays == 0 {
		s.Reminders.LeadDays = DefaultReminderDays
	}

	if s.Reminders.Schedule == "" {
		s.Reminders.Schedule = DefaultReminderSchedule
	}

	if s.Dispatch.TimeoutSeconds == 0 {
		s.Dispatch.TimeoutSeconds = DefaultDispatchSeconds
	}

	if s.Redis.LockTTLSeconds == 0 {
		s.Redis.LockTTLSeconds = DefaultLockTTLSeconds
	}

	if s.Redis.ReturnQueue == "" {
		s.Redis.ReturnQueue = DefaultReturnQueue
	}
}

// Validate checks the schedules and templates of the settings.
func (s *Settings) Validate() error {
	var errs []error

	if s.Retention.PeriodDays < 0 {
		errs = append(errs, errors.New("retention.period_days must not be negative"))
	}

	if s.Reminders.LeadDays < 0 {
		errs = append(errs, errors.New("reminders.lead_days must not be negative"))
	}

	if err := schedule.Validate(s.Retention.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("retention.schedule: %w", err))
	}

	if err := schedule.Validate(s.Reminders.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("reminders.schedule: %w", err))
	}

	if s.Dispatch.Subject != "" {
		if err := template.Validate(s.Dispatch.Subject); err != nil {
			errs = append(errs, fmt.Errorf("dispatch.subject: %w", err))
		}
	}

	if s.Dispatch.Body != "" {
		if err := template.Validate(s.Dispatch.Body); err != nil {
			errs = append(errs, fmt.Errorf("dispatch.body: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *Settings) RetentionPeriod() time.Duration {
	return time.Duration(s.Retention.PeriodDays) * 24 * time.Hour
}

func (s *Settings) DispatchTimeout() time.Duration {
	return time.Duration(s.Dispatch.TimeoutSeconds) * time.Second
}

func (s *Settings) LockTTL() time.Duration {
	return time.Duration(s.Redis.LockTTLSeconds) * time.Second
}

// AutoAdvance reports whether the next step is dispatched automatically. It defaults to true.
func (s *Settings) AutoAdvance() bool {
	return s.Dispatch.Enabled == nil || *s.Dispatch.Enabled
}
