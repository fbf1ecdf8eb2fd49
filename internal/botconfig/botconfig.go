// Package botconfig models the per-project bot configuration blob. The blob
// is stored as JSON but is always parsed into Config and validated before
// anything reads it.
package botconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultSlotDurationMinutes = 60
	TimeLayout                 = "15:04"
)

// Weekdays are the accepted business-hours keys, in time.Weekday order.
var Weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Config is the whole bot configuration of a project. Every sub-policy is
// optional; a nil policy means the feature is not configured.
type Config struct {
	Reception     *Reception     `json:"reception,omitempty"`
	Transactional *Transactional `json:"transactional,omitempty"`
	Feedback      *Feedback      `json:"feedback,omitempty"`
	Reactivation  *Reactivation  `json:"reactivation,omitempty"`
}

type Reception struct {
	Enabled  bool      `json:"enabled"`
	Greeting string    `json:"greeting,omitempty"`
	WhatsApp *WhatsApp `json:"whatsapp,omitempty"`
	Telegram *Telegram `json:"telegram,omitempty"`
}

type WhatsApp struct {
	PhoneNumberID string `json:"phoneNumberId"`
	AccessToken   string `json:"accessToken"`
	VerifyToken   string `json:"verifyToken,omitempty"`
}

type Telegram struct {
	BotToken    string `json:"botToken"`
	BotUsername string `json:"botUsername,omitempty"`
}

// Transactional drives booking: business hours, slot sizing and the lead
// time rules for booking and cancelling.
type Transactional struct {
	AppointmentsEnabled bool                `json:"appointmentsEnabled"`
	Timezone            string              `json:"timezone,omitempty"`
	SlotDurationMinutes int                 `json:"slotDurationMinutes,omitempty"`
	BufferMinutes       int                 `json:"bufferMinutes,omitempty"`
	MinAdvanceHours     int                 `json:"minAdvanceHours,omitempty"`
	MaxAdvanceDays      int                 `json:"maxAdvanceDays,omitempty"`
	BusinessHours       map[string]DayHours `json:"businessHours,omitempty"`
	Cancellation        Cancellation        `json:"cancellation"`

	loc *time.Location
}

type DayHours struct {
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}

type Cancellation struct {
	Allowed        bool `json:"allowed"`
	MinHoursBefore int  `json:"minHoursBefore,omitempty"`
}

type Feedback struct {
	Enabled    bool   `json:"enabled"`
	DelayHours int    `json:"delayHours,omitempty"`
	Message    string `json:"message,omitempty"`
}

type Reactivation struct {
	Enabled      bool   `json:"enabled"`
	InactiveDays int    `json:"inactiveDays,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Parse decodes and validates a stored configuration.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if len(raw) == 0 {
		return &cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode bot config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every configured policy and caches derived values such as
// the booking time zone.
func (c *Config) Validate() error {
	var errs []error
	if t := c.Transactional; t != nil {
		errs = append(errs, t.validate()...)
	}
	if f := c.Feedback; f != nil && f.DelayHours < 0 {
		errs = append(errs, errors.New("feedback.delayHours must not be negative"))
	}
	if r := c.Reactivation; r != nil && r.InactiveDays < 0 {
		errs = append(errs, errors.New("reactivation.inactiveDays must not be negative"))
	}
	if rc := c.Reception; rc != nil && rc.WhatsApp != nil && rc.WhatsApp.PhoneNumberID == "" {
		errs = append(errs, errors.New("reception.whatsapp.phoneNumberId is required"))
	}
	return errors.Join(errs...)
}

// Booking returns the transactional policy when appointment booking is
// enabled, and false when it is missing or switched off.
func (c *Config) Booking() (*Transactional, bool) {
	if c == nil || c.Transactional == nil || !c.Transactional.AppointmentsEnabled {
		return nil, false
	}
	return c.Transactional, true
}

func (t *Transactional) validate() []error {
	var errs []error
	loc, err := ParseLocation(t.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("transactional.timezone: %w", err))
	}
	t.loc = loc

	if t.SlotDurationMinutes < 0 {
		errs = append(errs, errors.New("transactional.slotDurationMinutes must not be negative"))
	}
	if t.BufferMinutes < 0 {
		errs = append(errs, errors.New("transactional.bufferMinutes must not be negative"))
	}
	if t.MinAdvanceHours < 0 {
		errs = append(errs, errors.New("transactional.minAdvanceHours must not be negative"))
	}
	if t.MaxAdvanceDays < 0 {
		errs = append(errs, errors.New("transactional.maxAdvanceDays must not be negative"))
	}
	if t.Cancellation.MinHoursBefore < 0 {
		errs = append(errs, errors.New("transactional.cancellation.minHoursBefore must not be negative"))
	}

	normalized := make(map[string]DayHours, len(t.BusinessHours))
	for day, hours := range t.BusinessHours {
		key := strings.ToLower(strings.TrimSpace(day))
		if !isWeekday(key) {
			errs = append(errs, fmt.Errorf("transactional.businessHours: unknown day %q", day))
			continue
		}
		if !hours.Closed {
			open, errOpen := time.Parse(TimeLayout, hours.Open)
			closing, errClose := time.Parse(TimeLayout, hours.Close)
			switch {
			case errOpen != nil || errClose != nil:
				errs = append(errs, fmt.Errorf("transactional.businessHours.%s: open and close must be HH:MM", key))
			case !open.Before(closing):
				errs = append(errs, fmt.Errorf("transactional.businessHours.%s: open must be before close", key))
			}
		}
		normalized[key] = hours
	}
	t.BusinessHours = normalized
	return errs
}

// SlotDuration defaults to 60 minutes.
func (t *Transactional) SlotDuration() time.Duration {
	if t.SlotDurationMinutes <= 0 {
		return DefaultSlotDurationMinutes * time.Minute
	}
	return time.Duration(t.SlotDurationMinutes) * time.Minute
}

func (t *Transactional) Buffer() time.Duration {
	return time.Duration(t.BufferMinutes) * time.Minute
}

func (t *Transactional) MinAdvance() time.Duration {
	return time.Duration(t.MinAdvanceHours) * time.Hour
}

func (t *Transactional) MinCancelNotice() time.Duration {
	return time.Duration(t.Cancellation.MinHoursBefore) * time.Hour
}

// Location is the project's booking time zone; UTC when unset.
func (t *Transactional) Location() *time.Location {
	if t.loc == nil {
		loc, err := ParseLocation(t.Timezone)
		if err != nil {
			return time.UTC
		}
		t.loc = loc
	}
	return t.loc
}

// Window returns the business hours of the given calendar day as absolute
// instants. ok is false when the day is closed or not configured.
func (t *Transactional) Window(year int, month time.Month, day int) (open, closing time.Time, ok bool) {
	loc := t.Location()
	date := time.Date(year, month, day, 0, 0, 0, 0, loc)
	hours, found := t.BusinessHours[Weekdays[date.Weekday()]]
	if !found || hours.Closed {
		return time.Time{}, time.Time{}, false
	}
	o, err := time.Parse(TimeLayout, hours.Open)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	c, err := time.Parse(TimeLayout, hours.Close)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	open = time.Date(year, month, day, o.Hour(), o.Minute(), 0, 0, loc)
	closing = time.Date(year, month, day, c.Hour(), c.Minute(), 0, 0, loc)
	return open, closing, open.Before(closing)
}

// ParseLocation accepts an IANA zone name ("America/Bogota") or a fixed
// offset written as "UTC-05:00", "+03:00" or "-0500". Empty means UTC.
func ParseLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || strings.EqualFold(tz, "utc") {
		return time.UTC, nil
	}
	offset := strings.TrimPrefix(strings.TrimPrefix(tz, "UTC"), "GMT")
	if strings.HasPrefix(offset, "+") || strings.HasPrefix(offset, "-") {
		for _, layout := range []string{"-07:00", "-0700", "-07"} {
			if ts, err := time.Parse(layout, offset); err == nil {
				_, secs := ts.Zone()
				return time.FixedZone(tz, secs), nil
			}
		}
		return nil, fmt.Errorf("invalid offset %q", tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q", tz)
	}
	return loc, nil
}

func isWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}
