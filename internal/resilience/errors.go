package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// ErrQuotaExceeded is matched by every QuotaError. A run that sees it stops
// issuing work, checkpoints and exits with a partial summary.
var ErrQuotaExceeded = eris.New("provider quota exceeded")

// ErrPersistence is matched by every PersistError. Unlike a quota stop it
// is fatal to the run.
var ErrPersistence = eris.New("persistence failure")

// TransientError wraps an error that is safe to retry (5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// QuotaError reports that a provider refused work because a rate or daily
// quota is exhausted.
type QuotaError struct {
	Provider   string
	StatusCode int
	Detail     string
}

// NewQuotaError builds a QuotaError for the named provider.
func NewQuotaError(provider string, statusCode int, detail string) *QuotaError {
	return &QuotaError{Provider: provider, StatusCode: statusCode, Detail: detail}
}

func (e *QuotaError) Error() string {
	msg := fmt.Sprintf("%s: quota exceeded", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is lets errors.Is(err, ErrQuotaExceeded) match any QuotaError.
func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// IsQuota reports whether err (or anything it wraps) is a quota stop.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	var qe *QuotaError
	return errors.As(err, &qe) || errors.Is(err, ErrQuotaExceeded)
}

// PersistError wraps a failed write of the work list or a cache.
type PersistError struct {
	Op  string
	Err error
}

// NewPersistError wraps err as a persistence failure of op.
func NewPersistError(op string, err error) *PersistError {
	return &PersistError{Op: op, Err: err}
}

func (e *PersistError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPersistence) match any PersistError.
func (e *PersistError) Is(target error) bool {
	return target == ErrPersistence
}

// IsPersistence reports whether err is a persistence failure.
func IsPersistence(err error) bool {
	if err == nil {
		return false
	}
	var pe *PersistError
	return errors.As(err, &pe)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures). Quota errors are never transient:
// retrying them only burns more quota.
func IsTransient(err error) bool {
	if err == nil || IsQuota(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue. 429 is deliberately absent: providers in this
// pipeline report quota exhaustion with it.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsQuotaHTTPStatus reports whether the status code means "stop calling".
func IsQuotaHTTPStatus(statusCode int) bool {
	return statusCode == 429
}

// ClassifyError labels an error for the run's failure list.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case IsQuota(err):
		return "quota"
	case IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}
