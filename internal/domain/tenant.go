package domain

import (
	"errors"
	"strings"
)

// MaxTenantIDLength bounds tenant IDs accepted from clients and config.
const MaxTenantIDLength = 128

var ErrInvalidTenantID = errors.New("invalid tenant id")

// ValidateTenantID checks that id can be embedded in registry keys, cache
// keys and NATS subjects.
func ValidateTenantID(id string) error {
	switch {
	case id == "":
		return errors.New("tenant id is required")
	case len(id) > MaxTenantIDLength:
		return ErrInvalidTenantID
	case strings.ContainsAny(id, "/*>.: \t"):
		return ErrInvalidTenantID
	}
	return nil
}
