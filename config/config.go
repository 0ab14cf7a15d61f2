package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// OutputMode selects where playback goes
type OutputMode string

const (
	OutputSpeaker OutputMode = "speaker"
	OutputMIDI    OutputMode = "midi"
)

// AudioConfig holds synthesis output settings
type AudioConfig struct {
	SampleRate int     `json:"sampleRate,omitempty"`
	Gain       float64 `json:"gain,omitempty"`
	Tail       float64 `json:"tail,omitempty"` // seconds kept after the last note
}

// MIDIConfig holds hardware MIDI output settings
type MIDIConfig struct {
	PortName string `json:"portName,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Theme        string `json:"theme,omitempty"` // palette file path
	ShowChannels bool   `json:"showChannels,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	BankPath    string      `json:"bankPath,omitempty"`
	RecentFiles []string    `json:"recentFiles,omitempty"`
	Output      OutputMode  `json:"output,omitempty"`
	Audio       AudioConfig `json:"audio,omitempty"`
	MIDI        MIDIConfig  `json:"midi,omitempty"`
	UI          UIConfig    `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputSpeaker,
		Audio: AudioConfig{
			SampleRate: 44100,
			Gain:       0.5,
			Tail:       0.5,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-sfplayer"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// AddRecent records a played file at the front of the recent list,
// deduplicating and keeping at most ten entries
func (c *Config) AddRecent(path string) {
	out := []string{path}
	for _, p := range c.RecentFiles {
		if p != path {
			out = append(out, p)
		}
	}
	if len(out) > 10 {
		out = out[:10]
	}
	c.RecentFiles = out
}
