// Package ident validates identifiers spliced into SQL as structure rather
// than bound as values. Engine placeholders can bind values but not table or
// field names, so this check is the system's only injection defense and must
// run before any name reaches SQL text.
package ident

import (
	"fmt"
	"regexp"

	"github.com/mesh-intelligence/reshape/pkg/types"
)

// namePattern accepts a leading letter or underscore followed by letters,
// digits, and underscores.
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate returns nil when name is a safe SQL identifier. The error wraps
// types.ErrValidation so callers classify with errors.Is.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: identifier must not be empty", types.ErrValidation)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid identifier %q", types.ErrValidation, name)
	}
	return nil
}

// ValidateAll validates every name, returning the first failure.
func ValidateAll(names ...string) error {
	for _, name := range names {
		if err := Validate(name); err != nil {
			return err
		}
	}
	return nil
}
