package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("not found")

// SettingsVersion is the current layout of the settings record.
const SettingsVersion = 1

// Settings are the user preferences kept between sessions.
type Settings struct {
	Version              int  `json:"version"`
	SoundEnabled         bool `json:"soundEnabled"`
	DesktopNotifications bool `json:"desktopNotifications"`
	DarkMode             bool `json:"darkMode"`
	MessageAnimations    bool `json:"messageAnimations"`
	SendOnEnter          bool `json:"sendOnEnter"`
	ShowTimestamps       bool `json:"showTimestamps"`
}

// DefaultSettings returns the preferences of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Version:              SettingsVersion,
		SoundEnabled:         true,
		DesktopNotifications: false,
		DarkMode:             false,
		MessageAnimations:    true,
		SendOnEnter:          true,
		ShowTimestamps:       true,
	}
}

// settingsRecord mirrors Settings with optional fields so missing keys keep their defaults.
type settingsRecord struct {
	Version              int   `json:"version"`
	SoundEnabled         *bool `json:"soundEnabled"`
	DesktopNotifications *bool `json:"desktopNotifications"`
	DarkMode             *bool `json:"darkMode"`
	MessageAnimations    *bool `json:"messageAnimations"`
	SendOnEnter          *bool `json:"sendOnEnter"`
	ShowTimestamps       *bool `json:"showTimestamps"`
}

// DecodeSettings reads a stored record of any version. Fields the record lacks take
// their defaults and the result is upgraded to SettingsVersion.
func DecodeSettings(data []byte) (Settings, error) {
	var rec settingsRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return DefaultSettings(), fmt.Errorf("decode settings: %w", err)
	}
	if rec.Version > SettingsVersion {
		return DefaultSettings(), fmt.Errorf("settings version %d is newer than supported %d", rec.Version, SettingsVersion)
	}
	s := DefaultSettings()
	apply := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&s.SoundEnabled, rec.SoundEnabled)
	apply(&s.DesktopNotifications, rec.DesktopNotifications)
	apply(&s.DarkMode, rec.DarkMode)
	apply(&s.MessageAnimations, rec.MessageAnimations)
	apply(&s.SendOnEnter, rec.SendOnEnter)
	apply(&s.ShowTimestamps, rec.ShowTimestamps)
	return s, nil
}

// EncodeSettings serializes the whole record.
func EncodeSettings(s Settings) ([]byte, error) {
	s.Version = SettingsVersion
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return data, nil
}

// SettingsStore persists preferences.
type SettingsStore interface {
	// LoadSettings returns the stored preferences, or the defaults when none were saved.
	LoadSettings(ctx context.Context) (Settings, error)

	// SaveSettings replaces the stored preferences.
	SaveSettings(ctx context.Context, s Settings) error
}

// SessionStore remembers where the user was.
type SessionStore interface {
	// LastRoom returns the last room the user was in, or "" when unknown.
	LastRoom(ctx context.Context) (string, error)

	// SaveLastRoom records the current room.
	SaveLastRoom(ctx context.Context, roomID string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	SettingsStore
	SessionStore

	// Close closes the underlying database connection.
	Close() error
}
