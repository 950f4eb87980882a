package refresh

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownTimeframe is returned when a timeframe label cannot be parsed.
var ErrUnknownTimeframe = errors.New("refresh: unknown timeframe")

// Timeframe is one stage of the refresh cascade. The zero value is the
// coarsest (base) stage; each following value is the next finer one.
type Timeframe int

const (
	TF4h Timeframe = iota
	TF1h
	TF15m
	TF5m
	TF1m
)

var timeframes = [...]struct {
	label    string
	duration time.Duration
}{
	TF4h:  {"4h", 4 * time.Hour},
	TF1h:  {"1h", time.Hour},
	TF15m: {"15m", 15 * time.Minute},
	TF5m:  {"5m", 5 * time.Minute},
	TF1m:  {"1m", time.Minute},
}

// Timeframes returns every stage from coarsest to finest.
func Timeframes() []Timeframe {
	out := make([]Timeframe, len(timeframes))
	for i := range timeframes {
		out[i] = Timeframe(i)
	}
	return out
}

// ParseTimeframe converts a label such as "15m" into a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	label := strings.ToLower(strings.TrimSpace(s))
	for i, tf := range timeframes {
		if tf.label == label {
			return Timeframe(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownTimeframe, s)
}

// Valid reports whether tf is one of the known stages.
func (tf Timeframe) Valid() bool {
	return tf >= 0 && int(tf) < len(timeframes)
}

func (tf Timeframe) String() string {
	if !tf.Valid() {
		return fmt.Sprintf("Timeframe(%d)", int(tf))
	}
	return timeframes[tf].label
}

// Duration is the candle width of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	if !tf.Valid() {
		return 0
	}
	return timeframes[tf].duration
}

// IsBase reports whether tf is the coarsest stage, whose symbols come from
// the external universe rather than from a parent run.
func (tf Timeframe) IsBase() bool { return tf == TF4h }

// Next returns the next finer timeframe. ok is false for the finest stage.
func (tf Timeframe) Next() (next Timeframe, ok bool) {
	next = tf + 1
	return next, tf.Valid() && next.Valid()
}

// Previous returns the next coarser timeframe. ok is false for the base stage.
func (tf Timeframe) Previous() (prev Timeframe, ok bool) {
	prev = tf - 1
	return prev, tf.Valid() && prev.Valid()
}

// Slot returns the half-open window [start, end) of the last closed candle at
// instant t. Every stage triggered on a shared boundary gets the same end,
// which is what lets a finished run find its successor.
func (tf Timeframe) Slot(t time.Time) (start, end time.Time) {
	d := tf.Duration()
	end = t.UTC().Truncate(d)
	return end.Add(-d), end
}

// MarshalText implements encoding.TextMarshaler.
func (tf Timeframe) MarshalText() ([]byte, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("%w %d", ErrUnknownTimeframe, int(tf))
	}
	return []byte(tf.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (tf *Timeframe) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeframe(string(text))
	if err != nil {
		return err
	}
	*tf = parsed
	return nil
}
