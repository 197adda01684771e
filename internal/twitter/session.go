package twitter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// sessionTTL bounds how long a persisted session is trusted before a
// fresh verification round-trip is forced anyway.
const sessionTTL = 30 * 24 * time.Hour

// sessionDir returns the directory for persisting session cookies.
func sessionDir(override string) string {
	if override != "" {
		return override
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".degen-server", "sessions")
}

// sessionPath returns the file path for a given username's session.
func sessionPath(dir, username string) string {
	return filepath.Join(dir, username+".json")
}

// savedSession holds serialized cookie data for persistence.
type savedSession struct {
	AuthToken string    `json:"auth_token"`
	CSRFToken string    `json:"csrf_token"`
	SavedAt   time.Time `json:"saved_at"`
}

// saveSession persists auth and csrf tokens to disk.
func saveSession(dir, username, authToken, csrfToken string) error {
	d := sessionDir(dir)
	if err := os.MkdirAll(d, 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	s := savedSession{AuthToken: authToken, CSRFToken: csrfToken, SavedAt: time.Now()}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	path := sessionPath(d, username)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	slog.Debug("session saved", slog.String("user", username))
	return nil
}

// loadSession loads a persisted session from disk. A missing or expired
// file returns empty tokens, not an error.
func loadSession(dir, username string) (authToken, csrfToken string, err error) {
	data, err := os.ReadFile(sessionPath(sessionDir(dir), username))
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", err
	}
	var s savedSession
	if err := json.Unmarshal(data, &s); err != nil {
		return "", "", err
	}
	if time.Since(s.SavedAt) > sessionTTL {
		slog.Debug("session expired", slog.String("user", username))
		return "", "", nil
	}
	return s.AuthToken, s.CSRFToken, nil
}

// removeSession deletes a persisted session, for use before a clean re-login.
func removeSession(dir, username string) {
	_ = os.Remove(sessionPath(sessionDir(dir), username))
}
