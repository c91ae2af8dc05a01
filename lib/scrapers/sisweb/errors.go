package sisweb

import (
	"errors"
	"fmt"
)

var (
	// CAS rejected the credentials, surfaced to the user as-is,
	// never retried from inside the scraper
	ErrInvalidCredentials = errors.New("incorrect username or password")
	// a network-level failure on a step that isn't the credential
	// check itself, callers may retry with backoff
	ErrUpstreamUnavailable = errors.New("the SIS is unreachable")
	// authentication worked but no strategy produced a single record,
	// either the page shape changed or there are genuinely no grades
	ErrExtractionEmpty = errors.New("no grades found on the page")
	// the session id is not in the registry, expired or never existed
	ErrSessionExpired = errors.New("session expired or unknown")
)

// AutomationError wraps any failure inside the headless-browser path.
// By the time a caller sees one, the browser context has already been
// released.
type AutomationError struct {
	Step string
	Err  error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("browser automation failed at %s: %s", e.Step, e.Err)
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}
