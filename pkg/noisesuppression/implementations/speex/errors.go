package speex

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrEngineInitialization = errors.New("unable to initialize the preprocessing engine")
	ErrEngineRuntime        = errors.New("the preprocessing engine failed to process a chunk")
	ErrClosed               = errors.New("the chunk processor is closed")
)

// SizeMismatchError is returned when an input does not have
// exactly the configured chunk size.
type SizeMismatchError struct {
	Actual   int
	Expected int
}

func (err *SizeMismatchError) Error() string {
	return fmt.Sprintf("input audio size (%d bytes) does not match the configured chunk size (%d bytes)", err.Actual, err.Expected)
}
