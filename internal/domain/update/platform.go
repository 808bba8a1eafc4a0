package update

import (
	"errors"
	"fmt"
	"strings"
)

// Platform is a native target an update is published for.
type Platform string

const (
	// PlatformIOS targets iOS builds.
	PlatformIOS Platform = "ios"
	// PlatformAndroid targets Android builds.
	PlatformAndroid Platform = "android"
)

// ErrUnknownPlatform is returned for platforms other than ios and android.
var ErrUnknownPlatform = errors.New("platform must be one of: ios, android")

// ParsePlatform validates user input. Matching is case-insensitive.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformIOS, PlatformAndroid:
		return p, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownPlatform)
	}
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// RollbackType selects what a runtime version is reverted to.
type RollbackType string

const (
	// RollbackPrevious reverts to the update published before the current one.
	RollbackPrevious RollbackType = "previous"
	// RollbackEmbedded reverts to the update embedded in the native binary.
	RollbackEmbedded RollbackType = "embedded"
)

// RollbackTypeFor maps the --embedded flag to a rollback type.
func RollbackTypeFor(embedded bool) RollbackType {
	if embedded {
		return RollbackEmbedded
	}

	return RollbackPrevious
}
