package schema

import (
	"net/mail"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FormatValidator is a function that validates a string format
type FormatValidator func(value string) bool

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// validateEmail accepts a bare RFC 5322 address
func validateEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// validateURI requires an absolute URI with a scheme
func validateURI(uri string) bool {
	u, err := url.Parse(uri)
	return err == nil && u.Scheme != "" && (u.Host != "" || u.Opaque != "")
}

func validateUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// validateDate validates ISO 8601 date format (YYYY-MM-DD)
func validateDate(date string) bool {
	if !datePattern.MatchString(date) {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// validateDateTime validates RFC 3339 datetime format
func validateDateTime(datetime string) bool {
	_, err := time.Parse(time.RFC3339Nano, datetime)
	return err == nil
}

var (
	formatsMu        sync.RWMutex
	formatValidators = map[string]FormatValidator{
		"email":    validateEmail,
		"uri":      validateURI,
		"uuid":     validateUUID,
		"date":     validateDate,
		"datetime": validateDateTime,
	}
)

// RegisterFormat registers a custom format validator. It must run before any
// descriptor naming the format is built.
func RegisterFormat(format string, validator FormatValidator) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	formatValidators[format] = validator
}

// GetFormatValidator returns a format validator by name
func GetFormatValidator(format string) (FormatValidator, bool) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	validator, exists := formatValidators[format]
	return validator, exists
}
