// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const MaxUsernameLen = 64

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("empty user name")
)

// User is the public view of a registered participant.
type User struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Peer  string `json:"peer,omitempty"`
}

// ValidateUsername trims the name and checks its bounds.
func ValidateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return "", ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return username, nil
}
