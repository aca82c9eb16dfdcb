package scheduler

import (
	"errors"
	"testing"
	"time"
)

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
		check   func(t *testing.T, trigger *Trigger)
	}{
		{
			name: "cron trigger",
			raw:  `{"type":"cron","expression":"0 9 * * *"}`,
			check: func(t *testing.T, trigger *Trigger) {
				if trigger.Kind != TriggerCron {
					t.Errorf("Kind = %v, want cron", trigger.Kind)
				}
				if trigger.Cron == nil || trigger.Cron.Expression != "0 9 * * *" {
					t.Errorf("Cron = %+v, want expression 0 9 * * *", trigger.Cron)
				}
			},
		},
		{
			name: "interval trigger with minutes",
			raw:  `{"type":"interval","minutes":5}`,
			check: func(t *testing.T, trigger *Trigger) {
				if trigger.Kind != TriggerInterval {
					t.Errorf("Kind = %v, want interval", trigger.Kind)
				}
				if got := trigger.Interval.Period(); got != 5*time.Minute {
					t.Errorf("Period() = %v, want 5m", got)
				}
			},
		},
		{
			name: "interval trigger sums all units",
			raw:  `{"type":"interval","seconds":30,"minutes":1,"hours":2,"days":1,"weeks":1}`,
			check: func(t *testing.T, trigger *Trigger) {
				want := 30*time.Second + time.Minute + 2*time.Hour + 24*time.Hour + 7*24*time.Hour
				if got := trigger.Interval.Period(); got != want {
					t.Errorf("Period() = %v, want %v", got, want)
				}
			},
		},
		{
			name: "missing type defaults to interval",
			raw:  `{"seconds":45}`,
			check: func(t *testing.T, trigger *Trigger) {
				if trigger.Kind != TriggerInterval {
					t.Errorf("Kind = %v, want interval", trigger.Kind)
				}
				if got := trigger.Interval.Period(); got != 45*time.Second {
					t.Errorf("Period() = %v, want 45s", got)
				}
			},
		},
		{
			name: "double-encoded config string",
			raw:  `"{\"type\":\"cron\",\"expression\":\"*/5 * * * *\"}"`,
			check: func(t *testing.T, trigger *Trigger) {
				if trigger.Kind != TriggerCron {
					t.Errorf("Kind = %v, want cron", trigger.Kind)
				}
			},
		},
		{
			name:    "empty config",
			raw:     ``,
			wantErr: ErrMalformedTriggerConfig,
		},
		{
			name:    "invalid JSON",
			raw:     `{not json`,
			wantErr: ErrMalformedTriggerConfig,
		},
		{
			name:    "double-encoded invalid JSON",
			raw:     `"{not json"`,
			wantErr: ErrMalformedTriggerConfig,
		},
		{
			name:    "unsupported type",
			raw:     `{"type":"webhook"}`,
			wantErr: ErrUnsupportedTriggerType,
		},
		{
			name:    "cron without expression",
			raw:     `{"type":"cron"}`,
			wantErr: ErrMissingCronExpression,
		},
		{
			name:    "cron with blank expression",
			raw:     `{"type":"cron","expression":"   "}`,
			wantErr: ErrMissingCronExpression,
		},
		{
			name:    "cron with too few fields",
			raw:     `{"type":"cron","expression":"* * *"}`,
			wantErr: ErrMalformedTriggerConfig,
		},
		{
			name:    "cron with out-of-range value",
			raw:     `{"type":"cron","expression":"60 * * * *"}`,
			wantErr: ErrMalformedTriggerConfig,
		},
		{
			name:    "cron with non-numeric token",
			raw:     `{"type":"cron","expression":"a b c d e"}`,
			wantErr: ErrMalformedTriggerConfig,
		},
		{
			name:    "interval with no units",
			raw:     `{"type":"interval"}`,
			wantErr: ErrEmptyIntervalSpec,
		},
		{
			name:    "interval with all zero units",
			raw:     `{"type":"interval","seconds":0,"minutes":0}`,
			wantErr: ErrEmptyIntervalSpec,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := ParseTrigger([]byte(tt.raw))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParseTrigger() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTrigger() error = %v", err)
			}
			if tt.check != nil {
				tt.check(t, trigger)
			}
		})
	}
}

func TestIntervalTrigger_Period(t *testing.T) {
	tests := []struct {
		name     string
		interval IntervalTrigger
		want     time.Duration
	}{
		{"seconds only", IntervalTrigger{Seconds: 90}, 90 * time.Second},
		{"minutes only", IntervalTrigger{Minutes: 1}, time.Minute},
		{"weeks only", IntervalTrigger{Weeks: 2}, 14 * 24 * time.Hour},
		{"mixed", IntervalTrigger{Minutes: 90, Hours: 1}, 90*time.Minute + time.Hour},
		{"zero", IntervalTrigger{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.interval.Period(); got != tt.want {
				t.Errorf("Period() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDescriptor_Next_Interval(t *testing.T) {
	desc, err := ParseDescriptor([]byte(`{"type":"interval","minutes":1}`))
	if err != nil {
		t.Fatalf("ParseDescriptor() error = %v", err)
	}

	after := time.Date(2026, 1, 25, 12, 30, 0, 0, time.UTC)
	next := desc.Next(after)
	want := time.Date(2026, 1, 25, 12, 31, 0, 0, time.UTC)

	if !next.Equal(want) {
		t.Errorf("Next() = %v, want %v", next, want)
	}

	// Re-anchoring: the next fire after a fire time is one period later.
	second := desc.Next(next)
	if !second.Equal(want.Add(time.Minute)) {
		t.Errorf("Next(Next()) = %v, want %v", second, want.Add(time.Minute))
	}
}

func TestDescriptor_Next_Cron(t *testing.T) {
	desc, err := ParseDescriptor([]byte(`{"type":"cron","expression":"0 9 * * *"}`))
	if err != nil {
		t.Fatalf("ParseDescriptor() error = %v", err)
	}

	tests := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "before nine fires same day",
			after: time.Date(2026, 1, 25, 8, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "after nine fires next day",
			after: time.Date(2026, 1, 25, 9, 30, 0, 0, time.UTC),
			want:  time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "exactly nine fires strictly after",
			after: time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := desc.Next(tt.after)
			if !next.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.after, next, tt.want)
			}
			if !next.After(tt.after) {
				t.Errorf("Next() = %v, not strictly after %v", next, tt.after)
			}
		})
	}
}

func TestDescriptor_Summary(t *testing.T) {
	cronDesc, err := ParseDescriptor([]byte(`{"type":"cron","expression":"0 9 * * *"}`))
	if err != nil {
		t.Fatalf("ParseDescriptor() error = %v", err)
	}
	if got := cronDesc.Summary(); got != "cron 0 9 * * *" {
		t.Errorf("Summary() = %q, want %q", got, "cron 0 9 * * *")
	}

	intervalDesc, err := ParseDescriptor([]byte(`{"type":"interval","seconds":90}`))
	if err != nil {
		t.Fatalf("ParseDescriptor() error = %v", err)
	}
	if got := intervalDesc.Summary(); got != "every 1m30s" {
		t.Errorf("Summary() = %q, want %q", got, "every 1m30s")
	}
}

func TestNewDescriptor_RejectsBadVariants(t *testing.T) {
	if _, err := NewDescriptor(&Trigger{Kind: TriggerKind("one_time")}); !errors.Is(err, ErrUnsupportedTriggerType) {
		t.Errorf("NewDescriptor() error = %v, want ErrUnsupportedTriggerType", err)
	}
	if _, err := NewDescriptor(&Trigger{Kind: TriggerInterval, Interval: &IntervalTrigger{}}); !errors.Is(err, ErrEmptyIntervalSpec) {
		t.Errorf("NewDescriptor() error = %v, want ErrEmptyIntervalSpec", err)
	}
}
