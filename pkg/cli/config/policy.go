package config

import (
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// NotificationPolicy is the tunable part of the notification pipeline,
// loaded from a TOML file. All fields have working defaults; the file is
// optional.
type NotificationPolicy struct {
	// FreshnessWindowSec bounds how old (or how far ahead of wall
	// clock) a provider event may be and still notify.
	FreshnessWindowSec int `toml:"freshness_window_sec"`

	// DigestHour is the default fire hour (UTC) for daily and weekly
	// digests when the user does not pick one.
	DigestHour int `toml:"digest_hour"`

	// DigestWeekday is the default fire weekday for weekly digests
	DigestWeekday string `toml:"digest_weekday"`

	// RenewalIntervalHours is how often watch channels are re-registered
	RenewalIntervalHours int `toml:"renewal_interval_hours"`
}

// DefaultNotificationPolicy returns the built-in policy values
func DefaultNotificationPolicy() *NotificationPolicy {
	return &NotificationPolicy{
		FreshnessWindowSec:   30,
		DigestHour:           9,
		DigestWeekday:        "monday",
		RenewalIntervalHours: 12,
	}
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Validate checks the policy values for consistency
func (p *NotificationPolicy) Validate() error {
	if p.FreshnessWindowSec <= 0 {
		return goerr.Wrap(ErrInvalidPolicy, "freshness_window_sec must be positive", goerr.V("value", p.FreshnessWindowSec))
	}
	if p.DigestHour < 0 || p.DigestHour > 23 {
		return goerr.Wrap(ErrInvalidPolicy, "digest_hour must be between 0 and 23", goerr.V("value", p.DigestHour))
	}
	if _, ok := weekdays[strings.ToLower(p.DigestWeekday)]; !ok {
		return goerr.Wrap(ErrInvalidPolicy, "unknown digest_weekday", goerr.V("value", p.DigestWeekday))
	}
	if p.RenewalIntervalHours <= 0 {
		return goerr.Wrap(ErrInvalidPolicy, "renewal_interval_hours must be positive", goerr.V("value", p.RenewalIntervalHours))
	}
	return nil
}

// FreshnessWindow returns the window as a duration
func (p *NotificationPolicy) FreshnessWindow() time.Duration {
	return time.Duration(p.FreshnessWindowSec) * time.Second
}

// DigestWeekdayValue returns the parsed default weekday
func (p *NotificationPolicy) DigestWeekdayValue() time.Weekday {
	return weekdays[strings.ToLower(p.DigestWeekday)]
}

// RenewalInterval returns the renewal cadence as a duration
func (p *NotificationPolicy) RenewalInterval() time.Duration {
	return time.Duration(p.RenewalIntervalHours) * time.Hour
}

// Policy holds the CLI flag pointing at the optional policy file
type Policy struct {
	path string
}

func (x *Policy) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-file",
			Usage:       "Path to notification policy TOML file (optional)",
			Category:    "Policy",
			Sources:     cli.EnvVars("GYGES_POLICY_FILE"),
			Destination: &x.path,
		},
	}
}

// Configure loads and validates the policy file, falling back to the
// built-in defaults when no file is given. Fields missing from the file
// keep their defaults.
func (x *Policy) Configure() (*NotificationPolicy, error) {
	policy := DefaultNotificationPolicy()
	if x.path == "" {
		return policy, nil
	}

	raw, err := os.ReadFile(x.path)
	if err != nil {
		return nil, goerr.Wrap(ErrPolicyNotFound, err.Error(), goerr.V("path", x.path))
	}

	if err := toml.Unmarshal(raw, policy); err != nil {
		return nil, goerr.Wrap(err, "failed to parse policy file", goerr.V("path", x.path))
	}

	if err := policy.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid policy file", goerr.V("path", x.path))
	}

	return policy, nil
}
