package ledger

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput matches every InvalidInputError.
	ErrInvalidInput = errors.New("ledger: invalid input")
	// ErrUnknownWindow is returned by ParseWindow for unsupported names.
	ErrUnknownWindow = errors.New("ledger: unknown window")
)

// InvalidInputError reports a sample whose timestamp precedes its predecessor.
type InvalidInputError struct {
	Index    int
	Previous time.Time
	Got      time.Time
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("ledger: sample %d at %s precedes sample %d at %s",
		e.Index, e.Got.Format(time.RFC3339Nano), e.Index-1, e.Previous.Format(time.RFC3339Nano))
}

// Is lets errors.Is(err, ErrInvalidInput) match.
func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }
