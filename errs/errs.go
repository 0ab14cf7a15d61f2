// Package errs defines the error taxonomy shared by the bank and MIDI
// parsers and the zone resolver.
package errs

import (
	"errors"
	"fmt"
)

// FormatError reports a structurally invalid input: a wrong or missing
// container tag, a required section that is absent, or an unsupported
// encoding variant.
type FormatError struct {
	Section string // where the problem was found ("sfbk", "MThd", ...)
	Detail  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format: %s: %s", e.Section, e.Detail)
}

// BoundsError reports a declared size or offset that would read past the
// end of the input buffer. These are always checked before the read.
type BoundsError struct {
	What string // what was being read
	Need int    // bytes required
	Have int    // bytes available
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("bounds: %s: need %d bytes, have %d", e.What, e.Need, e.Have)
}

// RefError reports an index reference that falls outside its target table,
// or a playback request naming an entity the bank does not contain. A
// RefError is fatal for the zone or request that produced it, not for the
// bank as a whole.
type RefError struct {
	Kind  string // referenced table or entity ("instrument", "sample", "preset")
	Index int
	Limit int // table length, or -1 when not applicable
}

func (e *RefError) Error() string {
	if e.Limit < 0 {
		return fmt.Sprintf("reference: no %s %d", e.Kind, e.Index)
	}
	return fmt.Sprintf("reference: %s index %d out of range (table size %d)", e.Kind, e.Index, e.Limit)
}

// Formatf builds a FormatError for the given section.
func Formatf(section, format string, args ...any) error {
	return &FormatError{Section: section, Detail: fmt.Sprintf(format, args...)}
}

// Bounds builds a BoundsError.
func Bounds(what string, need, have int) error {
	return &BoundsError{What: what, Need: need, Have: have}
}

// Ref builds a RefError for an out-of-range table index.
func Ref(kind string, index, limit int) error {
	return &RefError{Kind: kind, Index: index, Limit: limit}
}

// IsFormat reports whether err wraps a FormatError.
func IsFormat(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsBounds reports whether err wraps a BoundsError.
func IsBounds(err error) bool {
	var be *BoundsError
	return errors.As(err, &be)
}

// IsRef reports whether err wraps a RefError.
func IsRef(err error) bool {
	var re *RefError
	return errors.As(err, &re)
}
