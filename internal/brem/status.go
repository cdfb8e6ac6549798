package brem

import (
	"errors"
	"strconv"
)

// ErrInvalidStatus is returned when a correction ends with a status other
// than Unchanged, NoneAdded or Added.
var ErrInvalidStatus = errors.New("invalid brem status")

// Status classifies what a correction did with brem.
type Status int8

const (
	// Unchanged means the correction did not apply; the brem flag of the
	// row is left untouched.
	Unchanged Status = -1
	// NoneAdded means adding brem was evaluated and rejected.
	NoneAdded Status = 0
	// Added means a brem contribution was added or confirmed.
	Added Status = 1
)

// Valid reports whether s is one of the three legal values.
func (s Status) Valid() bool {
	return s == Unchanged || s == NoneAdded || s == Added
}

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case NoneAdded:
		return "none_added"
	case Added:
		return "added"
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}
