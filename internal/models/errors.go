package models

import (
	"errors"
	"fmt"
)

// ErrDataShape is matched by every DataShapeError
var ErrDataShape = errors.New("malformed descriptor")

// DataShapeError reports a descriptor missing a required field
type DataShapeError struct {
	Kind  string // instance or bucket
	ID    string
	Field string
}

func (e *DataShapeError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s descriptor missing %s", e.Kind, e.Field)
	}
	return fmt.Sprintf("%s %s missing %s", e.Kind, e.ID, e.Field)
}

// Unwrap lets errors.Is match ErrDataShape
func (e *DataShapeError) Unwrap() error {
	return ErrDataShape
}
