package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lucasfontes/teamsbridge/internal/teams"
)

func init() {
	loadConfig()
}

// Config file structure
type configFile struct {
	IntervalSeconds int    `json:"interval_seconds"`
	StartTime       string `json:"start_time"` // "HH:MM"
	EndTime         string `json:"end_time"`   // "HH:MM"
	DefaultStatus   string `json:"default_status"`
	TeamsConfigPath string `json:"teams_config_path"`
}

var (
	loadedConfig configFile
	configMu     sync.RWMutex
)

// loadConfig loads configuration from file
func loadConfig() {
	configMu.Lock()
	defer configMu.Unlock()

	// Reset to empty
	loadedConfig = configFile{}

	configPath := os.Getenv("TEAMSBRIDGE_CONFIG_PATH")
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		configPath = filepath.Join(home, ".teamsbridge", "config.json")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return // Config file doesn't exist, use defaults
	}

	json.Unmarshal(data, &loadedConfig)
}

// reloadConfig reloads configuration (for testing)
func reloadConfig() {
	loadConfig()
}

// bridgeDir returns the base directory for teamsbridge files
func bridgeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/.teamsbridge"
	}
	return filepath.Join(home, ".teamsbridge")
}

// Interval returns how often the default status is re-asserted while
// connected. Defaults to two minutes, inside the Teams away timeout.
func Interval() time.Duration {
	configMu.RLock()
	secs := loadedConfig.IntervalSeconds
	configMu.RUnlock()
	if secs <= 0 {
		secs = 120
	}
	return time.Duration(secs) * time.Second
}

// DefaultStatus returns the status asserted by the keep-alive tick.
func DefaultStatus() teams.Status {
	configMu.RLock()
	name := loadedConfig.DefaultStatus
	configMu.RUnlock()
	if st, ok := teams.ParseStatus(name); ok {
		return st
	}
	return teams.StatusAvailable
}

// TeamsConfigPath returns where to look for the Teams desktop config.
// Priority: TEAMSBRIDGE_TEAMS_CONFIG env var > config file > default
func TeamsConfigPath() string {
	if envPath := os.Getenv("TEAMSBRIDGE_TEAMS_CONFIG"); envPath != "" {
		return envPath
	}

	configMu.RLock()
	configPath := loadedConfig.TeamsConfigPath
	configMu.RUnlock()
	if configPath != "" {
		return configPath
	}

	return teams.DefaultTeamsConfigPath()
}

// WithinSchedule reports whether t falls inside the configured working
// hours window. With no (or unparsable) window configured, every time
// qualifies. A window that crosses midnight wraps.
func WithinSchedule(t time.Time) bool {
	configMu.RLock()
	startStr, endStr := loadedConfig.StartTime, loadedConfig.EndTime
	configMu.RUnlock()

	if startStr == "" || endStr == "" {
		return true
	}
	start, err := time.Parse("15:04", startStr)
	if err != nil {
		return true
	}
	end, err := time.Parse("15:04", endStr)
	if err != nil {
		return true
	}

	minutes := t.Hour()*60 + t.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin <= endMin {
		return minutes >= startMin && minutes < endMin
	}
	return minutes >= startMin || minutes < endMin
}

// LogPath returns the log file path
func LogPath() string {
	return filepath.Join(bridgeDir(), "bridge.log")
}
