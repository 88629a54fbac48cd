package settings

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the settings file at path into a compiled,
// immutable Configuration.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var raw RawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	config, err := raw.Compile()
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}
	return config, nil
}

// DefaultConnectionsSettings returns the fallback values used when a
// settings file omits the "connections" block.
func DefaultConnectionsSettings() ConnectionsSettings {
	return ConnectionsSettings{
		BufferSize:           8 * 1024,
		RemoteConnectTimeout: DurationSeconds(5 * time.Second),
		RequestTimeout:       DurationSeconds(30 * time.Second),
	}
}
