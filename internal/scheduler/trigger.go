// Package scheduler implements the scheduled-workflow dispatch core:
// trigger parsing, the in-memory schedule registry, the fire dispatcher,
// and the startup loader.
package scheduler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger parse errors. Callers skip the offending workflow and continue.
var (
	ErrMalformedTriggerConfig = errors.New("malformed trigger config")
	ErrUnsupportedTriggerType = errors.New("unsupported trigger type")
	ErrMissingCronExpression  = errors.New("missing cron expression")
	ErrEmptyIntervalSpec      = errors.New("empty interval spec")
)

// TriggerKind is the closed set of schedule trigger kinds.
type TriggerKind string

const (
	// TriggerCron fires on a five-field crontab expression.
	TriggerCron TriggerKind = "cron"
	// TriggerInterval fires periodically, period = sum of the unit fields.
	TriggerInterval TriggerKind = "interval"
)

// CronTrigger holds a validated crontab expression.
type CronTrigger struct {
	Expression string
}

// IntervalTrigger holds the interval unit fields. At least one must be
// nonzero.
type IntervalTrigger struct {
	Seconds int
	Minutes int
	Hours   int
	Days    int
	Weeks   int
}

// Period returns the sum of the unit fields as a duration.
func (t IntervalTrigger) Period() time.Duration {
	return time.Duration(t.Seconds)*time.Second +
		time.Duration(t.Minutes)*time.Minute +
		time.Duration(t.Hours)*time.Hour +
		time.Duration(t.Days)*24*time.Hour +
		time.Duration(t.Weeks)*7*24*time.Hour
}

// Trigger is the tagged variant a trigger configuration normalizes into.
// Exactly one of Cron and Interval is set, matching Kind.
type Trigger struct {
	Kind     TriggerKind
	Cron     *CronTrigger
	Interval *IntervalTrigger
}

// cronParser accepts the standard five crontab fields. No descriptors, no
// seconds field: the persisted expressions are plain crontab.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// triggerConfigJSON is the persisted wire shape of a trigger configuration.
type triggerConfigJSON struct {
	Type       *string `json:"type"`
	Expression string  `json:"expression"`
	Seconds    int     `json:"seconds"`
	Minutes    int     `json:"minutes"`
	Hours      int     `json:"hours"`
	Days       int     `json:"days"`
	Weeks      int     `json:"weeks"`
}

// ParseTrigger normalizes a persisted trigger configuration. The input is a
// JSON object, or a JSON string containing that object (older rows were
// stored double-encoded).
func ParseTrigger(raw []byte) (*Trigger, error) {
	obj := bytes.TrimSpace(raw)
	if len(obj) == 0 {
		return nil, fmt.Errorf("%w: empty config", ErrMalformedTriggerConfig)
	}

	if obj[0] == '"' {
		var inner string
		if err := json.Unmarshal(obj, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTriggerConfig, err)
		}
		obj = []byte(inner)
	}

	var cfg triggerConfigJSON
	if err := json.Unmarshal(obj, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTriggerConfig, err)
	}

	// A missing type means interval; that is what the stored rows have
	// always defaulted to.
	kind := string(TriggerInterval)
	if cfg.Type != nil {
		kind = *cfg.Type
	}

	switch TriggerKind(kind) {
	case TriggerCron:
		if strings.TrimSpace(cfg.Expression) == "" {
			return nil, ErrMissingCronExpression
		}
		if _, err := cronParser.Parse(cfg.Expression); err != nil {
			return nil, fmt.Errorf("%w: invalid cron expression %q: %v",
				ErrMalformedTriggerConfig, cfg.Expression, err)
		}
		return &Trigger{
			Kind: TriggerCron,
			Cron: &CronTrigger{Expression: cfg.Expression},
		}, nil

	case TriggerInterval:
		interval := IntervalTrigger{
			Seconds: cfg.Seconds,
			Minutes: cfg.Minutes,
			Hours:   cfg.Hours,
			Days:    cfg.Days,
			Weeks:   cfg.Weeks,
		}
		if interval.Period() <= 0 {
			return nil, ErrEmptyIntervalSpec
		}
		return &Trigger{
			Kind:     TriggerInterval,
			Interval: &interval,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTriggerType, kind)
	}
}

// Descriptor is a normalized schedule capable of yielding fire times.
// Cron times are evaluated in UTC. Interval schedules anchor to whatever
// instant Next is asked about, so the registry anchors them to
// registration time and re-anchors on each fire.
type Descriptor struct {
	trigger  *Trigger
	schedule cron.Schedule // set for cron triggers
	period   time.Duration // set for interval triggers
}

// NewDescriptor builds a Descriptor from a normalized trigger.
func NewDescriptor(t *Trigger) (*Descriptor, error) {
	switch t.Kind {
	case TriggerCron:
		schedule, err := cronParser.Parse(t.Cron.Expression)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid cron expression %q: %v",
				ErrMalformedTriggerConfig, t.Cron.Expression, err)
		}
		return &Descriptor{trigger: t, schedule: schedule}, nil

	case TriggerInterval:
		period := t.Interval.Period()
		if period <= 0 {
			return nil, ErrEmptyIntervalSpec
		}
		return &Descriptor{trigger: t, period: period}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTriggerType, t.Kind)
	}
}

// ParseDescriptor parses a persisted trigger configuration straight into a
// Descriptor.
func ParseDescriptor(raw []byte) (*Descriptor, error) {
	trigger, err := ParseTrigger(raw)
	if err != nil {
		return nil, err
	}
	return NewDescriptor(trigger)
}

// Kind returns the trigger kind the descriptor was built from.
func (d *Descriptor) Kind() TriggerKind {
	return d.trigger.Kind
}

// Next returns the first fire time strictly after the given instant, or
// the zero time if the schedule can never fire again.
func (d *Descriptor) Next(after time.Time) time.Time {
	switch d.trigger.Kind {
	case TriggerCron:
		return d.schedule.Next(after.UTC())
	case TriggerInterval:
		return after.Add(d.period)
	default:
		return time.Time{}
	}
}

// Summary returns a short human-readable description for listings.
func (d *Descriptor) Summary() string {
	switch d.trigger.Kind {
	case TriggerCron:
		return "cron " + d.trigger.Cron.Expression
	case TriggerInterval:
		return "every " + d.period.String()
	default:
		return string(d.trigger.Kind)
	}
}
