package twitter

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/0xNerd/degen-server/internal/domain"
)

// errorClass categorizes API error responses for targeted handling.
type errorClass int

const (
	errNone        errorClass = iota
	errRateLimited            // code 88, rate limit exceeded
	errSuspended              // code 64, account suspended
	errLocked                 // code 326, account locked (captcha needed)
	errCSRF                   // code 353, csrf token mismatch
	errAuthExpired            // code 32, could not authenticate
)

// apiError wraps a non-2xx response with its classified error code.
type apiError struct {
	status int
	class  errorClass
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error (status %d, class %d): %s", e.status, e.class, e.body)
}

// Unwrap maps auth-shaped API errors onto the domain sentinel so callers
// can trigger re-authentication with errors.Is.
func (e *apiError) Unwrap() error {
	switch e.class {
	case errAuthExpired, errCSRF:
		return domain.ErrNotLoggedIn
	}
	return nil
}

// classifyError inspects a response body for known numeric error codes.
func classifyError(body []byte) errorClass {
	var errResp struct {
		Errors []struct {
			Code int `json:"code"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) != nil || len(errResp.Errors) == 0 {
		return errNone
	}

	for _, e := range errResp.Errors {
		switch e.Code {
		case 88:
			return errRateLimited
		case 64:
			return errSuspended
		case 326:
			return errLocked
		case 353:
			return errCSRF
		case 32:
			return errAuthExpired
		}
	}
	return errNone
}

// isAuthError reports whether err means the session is no longer valid.
func isAuthError(err error) bool {
	return errors.Is(err, domain.ErrNotLoggedIn)
}
