// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"

	"github.com/pdiddy/cvat2labelme/pkg/types"
)

var (
	// ErrParse matches every *ParseError.
	ErrParse = errors.New("malformed XML")

	// ErrProcessing matches every *ProcessingError.
	ErrProcessing = errors.New("processing failed")
)

// ParseError reports input that is not well-formed XML.
type ParseError struct {
	Line int    // 1-based line of the failure, 0 if unknown.
	Msg  string // Parser detail.
	Err  error  // Underlying decoder error, if any.
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

// ProcessingError reports a well-formed document whose content cannot be
// converted, such as a width attribute that is not an integer.
type ProcessingError struct {
	Image string // Name of the image being converted.
	Attr  string // Offending attribute, empty when not attribute-specific.
	Value string // Raw attribute value.
	Err   error
}

func (e *ProcessingError) Error() string {
	if e.Attr != "" {
		return fmt.Sprintf("image %q: invalid %s %q: %v", e.Image, e.Attr, e.Value, e.Err)
	}
	return fmt.Sprintf("image %q: %v", e.Image, e.Err)
}

// Is reports whether target is ErrProcessing.
func (e *ProcessingError) Is(target error) bool { return target == ErrProcessing }

func (e *ProcessingError) Unwrap() error { return e.Err }

// Kind classifies err for reporting. Errors that are neither parse nor
// processing failures (reading or writing files) are FailureIO.
func Kind(err error) types.FailureKind {
	switch {
	case err == nil:
		return types.FailureNone
	case errors.Is(err, ErrParse):
		return types.FailureParse
	case errors.Is(err, ErrProcessing):
		return types.FailureProcessing
	default:
		return types.FailureIO
	}
}
