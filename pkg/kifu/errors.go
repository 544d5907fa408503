package kifu

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIllegalMove is returned by Position.MakeMove for moves the board
// cannot accept.
var ErrIllegalMove = errors.New("illegal move")

// ParseError reports a grammar violation at a 1-based line and column.
type ParseError struct {
	Format string
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("%s: line %d, column %d: %s", e.Format, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("%s: line %d: %s", e.Format, e.Line, e.Msg)
}

type NormalizeErrorKind int

const (
	NoPreviousMove NormalizeErrorKind = iota + 1
	NoPieceAt
	AmbiguousOrigin
	MoveApplicationFailed
	InvalidSquare
)

func (k NormalizeErrorKind) String() string {
	switch k {
	case NoPreviousMove:
		return "no previous move"
	case NoPieceAt:
		return "no piece at origin"
	case AmbiguousOrigin:
		return "ambiguous origin"
	case MoveApplicationFailed:
		return "move application failed"
	case InvalidSquare:
		return "invalid square"
	}
	return fmt.Sprintf("normalize error %d", int(k))
}

// NormalizeError aborts normalization of a whole record. Ply is the
// 1-based index of the failing step within its branch.
type NormalizeError struct {
	Kind       NormalizeErrorKind
	Ply        int
	Square     Square
	Candidates []Square
	Err        error
}

func (e *NormalizeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ply %d: %s", e.Ply, e.Kind)
	switch e.Kind {
	case NoPieceAt, InvalidSquare:
		fmt.Fprintf(&b, " %s", e.Square)
	case AmbiguousOrigin:
		fmt.Fprintf(&b, " for %s, candidates %v", e.Square, e.Candidates)
	case NoPreviousMove, MoveApplicationFailed:
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *NormalizeError) Unwrap() error {
	return e.Err
}

// ConvertError is returned by the schema mappings (JKF, parquet rows)
// for values the canonical record cannot hold.
type ConvertError struct {
	Field string
	Msg   string
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("convert %s: %s", e.Field, e.Msg)
}

func convertErrorf(field, format string, args ...any) *ConvertError {
	return &ConvertError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
