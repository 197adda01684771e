package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/0xNerd/degen-server/internal/domain"
	"github.com/0xNerd/degen-server/internal/metrics"
)

const (
	loginAttempts    = 3
	loginBackoffBase = 5 * time.Second // grows linearly with attempt count
)

// SessionClient is the authentication surface of the content source client.
type SessionClient interface {
	SetCredentials(authToken, csrfToken string)
	LoadSession() (bool, error)
	SaveSession() error
	Login(ctx context.Context) error
	IsLoggedIn(ctx context.Context) (bool, error)
}

// Credentials is the explicit credential blob supplied at startup.
type Credentials struct {
	AuthToken string
	CSRFToken string
}

// authStrategy is one candidate way to establish a session. Establish
// reports false when the strategy has nothing to offer (e.g. no blob
// configured); a validation probe then decides whether to advance.
type authStrategy struct {
	name      string
	establish func(ctx context.Context) (bool, error)
}

// authenticate walks the ordered strategy chain: explicit credentials,
// persisted session, interactive login. The first candidate that passes
// the is-logged-in probe wins; if none does, authentication has failed
// and the pipeline must not start.
func (f *Fetcher) authenticate(ctx context.Context) error {
	strategies := []authStrategy{
		{name: "credentials", establish: f.establishFromCredentials},
		{name: "persisted", establish: f.establishFromDisk},
		{name: "login", establish: f.establishInteractive},
	}

	for _, s := range strategies {
		ok, err := s.establish(ctx)
		if err != nil {
			slog.Warn("auth strategy failed", "strategy", s.name, "error", err)
			metrics.LoginAttemptsTotal.WithLabelValues(s.name, "error").Inc()
			continue
		}
		if !ok {
			continue
		}

		valid, err := f.session.IsLoggedIn(ctx)
		if err != nil {
			slog.Warn("session probe failed", "strategy", s.name, "error", err)
			metrics.LoginAttemptsTotal.WithLabelValues(s.name, "error").Inc()
			continue
		}
		if !valid {
			slog.Info("session did not validate, advancing", "strategy", s.name)
			metrics.LoginAttemptsTotal.WithLabelValues(s.name, "invalid").Inc()
			continue
		}

		slog.Info("session established", "strategy", s.name)
		metrics.LoginAttemptsTotal.WithLabelValues(s.name, "ok").Inc()
		if err := f.session.SaveSession(); err != nil {
			slog.Warn("session save failed", "error", err)
		}
		return nil
	}

	return fmt.Errorf("no auth strategy yielded a valid session: %w", domain.ErrAuthentication)
}

func (f *Fetcher) establishFromCredentials(context.Context) (bool, error) {
	if f.creds.AuthToken == "" || f.creds.CSRFToken == "" {
		return false, nil
	}
	f.session.SetCredentials(f.creds.AuthToken, f.creds.CSRFToken)
	return true, nil
}

func (f *Fetcher) establishFromDisk(context.Context) (bool, error) {
	return f.session.LoadSession()
}

func (f *Fetcher) establishInteractive(ctx context.Context) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= loginAttempts; attempt++ {
		if err := f.session.Login(ctx); err != nil {
			lastErr = err
			slog.Warn("login attempt failed", "attempt", attempt, "error", err)
			if attempt == loginAttempts {
				break
			}
			select {
			case <-f.clock.After(loginBackoffBase * time.Duration(attempt)):
			case <-ctx.Done():
				return false, ctx.Err()
			}
			continue
		}
		return true, nil
	}
	return false, fmt.Errorf("login failed after %d attempts: %w", loginAttempts, lastErr)
}
