package ndps

import (
	"errors"
	"fmt"

	"github.com/geekxflood/ndpsdecode/internal/cursor"
)

// Decoder errors
var (
	// ErrTruncatedInput is returned when a declared length or offset reaches past the buffer.
	ErrTruncatedInput = cursor.ErrTruncated

	// ErrNestingTooDeep is returned when nested attributes exceed the configured depth.
	ErrNestingTooDeep = errors.New("nesting too deep")
)

// DecodeError locates a fatal decode failure within the input.
type DecodeError struct {
	Offset  int    // offset where the failing element began
	Element string // grammar element being decoded
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ndps: %s at offset %d: %v", e.Element, e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// wrap attaches element context to err once; inner DecodeErrors are kept as is.
func wrap(element string, offset int, err error) error {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Offset: offset, Element: element, Err: err}
}
