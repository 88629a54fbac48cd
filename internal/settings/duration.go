package settings

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DurationSeconds is a time.Duration that accepts either a Go duration
// string ("30s", "2m") or a bare integer number of seconds in YAML, since
// hand-written ops configs mix both conventions.
type DurationSeconds time.Duration

// Duration returns the underlying time.Duration.
func (d DurationSeconds) Duration() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler (the yaml.v3 node-based form).
func (d *DurationSeconds) UnmarshalYAML(value *yaml.Node) error {
	raw := value.Value

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = DurationSeconds(parsed)
		return nil
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a duration string (e.g. \"30s\") or a bare number of seconds, got %q", raw)
	}
	*d = DurationSeconds(time.Duration(seconds) * time.Second)
	return nil
}
