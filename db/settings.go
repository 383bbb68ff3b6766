package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

const (
	keyRefreshToken        = "refresh_token"
	keyInitialPollDone     = "initial_poll_done"
	keyPollingActive       = "polling_active"
	keyReducedPollingLogic = "reduced_polling_logic"
)

// Settings wraps the settings table behind the interfaces the coordinator
// and client expect.
type Settings struct {
	conn *sql.DB
}

func NewSettings(conn *sql.DB) *Settings {
	return &Settings{conn: conn}
}

func (s *Settings) get(key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Settings) set(key, value string) error {
	_, err := s.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

func (s *Settings) getBool(key string, fallback bool) (bool, error) {
	value, found, err := s.get(key)
	if err != nil || !found {
		return fallback, err
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, fmt.Errorf("malformed setting %s: %w", key, err)
	}
	return parsed, nil
}

// RefreshToken returns the persisted token, or fallback when none was
// rotated into the store yet.
func (s *Settings) RefreshToken(fallback string) (string, error) {
	value, found, err := s.get(keyRefreshToken)
	if err != nil || !found {
		return fallback, err
	}
	return value, nil
}

func (s *Settings) SaveRefreshToken(token string) error {
	return s.set(keyRefreshToken, token)
}

func (s *Settings) InitialPollDone() (bool, error) {
	return s.getBool(keyInitialPollDone, false)
}

func (s *Settings) MarkInitialPollDone() error {
	return s.set(keyInitialPollDone, "true")
}

func (s *Settings) PollingActive() (bool, error) {
	return s.getBool(keyPollingActive, true)
}

func (s *Settings) SetPollingActive(active bool) error {
	return s.set(keyPollingActive, strconv.FormatBool(active))
}

func (s *Settings) ReducedPollingLogic() (bool, error) {
	return s.getBool(keyReducedPollingLogic, false)
}

func (s *Settings) SetReducedPollingLogic(enabled bool) error {
	return s.set(keyReducedPollingLogic, strconv.FormatBool(enabled))
}
