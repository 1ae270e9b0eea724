// Package email provides common email utility functions.
package email

import (
	"errors"
	"net/mail"
	"strings"
)

// ErrInvalidAddress is returned for strings that are not a single mailbox
var ErrInvalidAddress = errors.New("invalid email address")

// Normalize returns the bare address of a mailbox with its domain lower-cased.
// "User Name <User@Example.COM>" becomes "User@example.com".
func Normalize(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrInvalidAddress
	}
	addr, err := mail.ParseAddress(address)
	if err != nil {
		return "", ErrInvalidAddress
	}
	at := strings.LastIndex(addr.Address, "@")
	if at <= 0 || at == len(addr.Address)-1 {
		return "", ErrInvalidAddress
	}
	return addr.Address[:at] + "@" + strings.ToLower(addr.Address[at+1:]), nil
}
