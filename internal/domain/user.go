// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxUserIDLen = 36

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

type UserID string

// ParseUserID keeps raw identifiers from adapters within sane bounds.
// The hub trusts the excluded auth layer for anything beyond length.
func ParseUserID(raw string) (UserID, error) {
	if len(raw) == 0 {
		return "", ErrUserIDEmpty
	}
	if len(raw) > MaxUserIDLen {
		return "", ErrUserIDTooLong
	}
	return UserID(raw), nil
}
