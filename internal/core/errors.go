package core

import (
	"errors"
	"fmt"
)

// ErrUnsupportedMigration is returned for a migration type no handler serves.
var ErrUnsupportedMigration = errors.New("unsupported migration type")

// ErrMissingProperties is returned when a remote resource lacks the
// identifiers an update or delete needs.
var ErrMissingProperties = errors.New("missing required properties")

func missingProperties(kind, ref string, props ...string) error {
	return fmt.Errorf("%s %q: %w: %v", kind, ref, ErrMissingProperties, props)
}
