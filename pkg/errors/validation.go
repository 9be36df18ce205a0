package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxZorder bounds layer z-orders accepted from scenario files and API
// requests. Presentation bands are 64 wide; anything larger cannot be
// re-banded.
const MaxZorder = 63

// MaxLayers bounds the number of layers in one frame.
const MaxLayers = 64

// ValidateZorder checks that a layer z-order fits a presentation band.
func ValidateZorder(z int) error {
	if z < 0 || z > MaxZorder {
		return New(ErrCodeInvalidScenario, "z-order %d out of range [0, %d]", z, MaxZorder)
	}
	return nil
}

// ValidateRect checks that a rectangle is well formed. Empty rectangles
// are allowed (they are routed to a composer), inverted ones are not.
func ValidateRect(what string, left, top, right, bottom int) error {
	if right < left || bottom < top {
		return New(ErrCodeInvalidScenario, "%s rectangle [%d,%d,%d,%d] is inverted", what, left, top, right, bottom)
	}
	if left < 0 || top < 0 {
		return New(ErrCodeInvalidScenario, "%s rectangle [%d,%d,%d,%d] has a negative origin", what, left, top, right, bottom)
	}
	return nil
}

// ValidateAlpha checks a plane alpha value.
func ValidateAlpha(a float32) error {
	if a < 0 || a > 1 {
		return New(ErrCodeInvalidScenario, "plane alpha %.2f out of range [0, 1]", a)
	}
	return nil
}

// scenarioNameRegex matches scenario and display names.
var scenarioNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateName validates a scenario, display or composer name.
//
// Names end up in cache keys, store documents and file names, so the rules
// are conservative:
//   - Not empty, at most 128 characters
//   - Letters, digits, '.', '_' and '-' only, starting with a letter or digit
func ValidateName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "name cannot be empty")
	}
	if len(name) > 128 {
		return New(ErrCodeInvalidInput, "name too long (max 128 characters)")
	}
	if !scenarioNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid name: %q", name)
	}
	return nil
}

// ValidatePath validates an output path given on the command line or in a
// scenario file.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURL validates a backend URL (redis://, mongodb://, http://).
func ValidateURL(rawURL string, schemes ...string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	for _, s := range schemes {
		if strings.HasPrefix(rawURL, s+"://") {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "URL must use one of the schemes %s", strings.Join(schemes, ", "))
}
