package domain

import (
	"fmt"
	"regexp"
	"time"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[\w.@+\-]{3,150}$`)
)

// DateLayout is the calendar date format accepted by pool filters.
const DateLayout = "2006-01-02"

// ValidateEmail checks if an email address is valid. Empty is allowed.
func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateUsername checks length and the allowed character set.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 3-150 letters, digits or .@+-_")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

// ParseDateRange parses an inclusive YYYY-MM-DD range. Both bounds must be
// given for the range to apply; a single bound is ignored. The returned upper
// bound is the last instant of the end day.
func ParseDateRange(start, end string) (from, to *time.Time, err error) {
	if start == "" || end == "" {
		return nil, nil, nil
	}
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start_date %q: expected YYYY-MM-DD", start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid end_date %q: expected YYYY-MM-DD", end)
	}
	e = e.Add(24*time.Hour - time.Nanosecond)
	return &s, &e, nil
}
