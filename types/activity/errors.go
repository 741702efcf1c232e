package activity

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is; every typed error below unwraps to exactly one of them.
var (
	ErrParse           = errors.New("malformed document")
	ErrSchema          = errors.New("schema violation")
	ErrMissingPosition = errors.New("missing position")
	ErrEmptyActivity   = errors.New("empty activity")
	ErrReconstruction  = errors.New("reconstruction failed")
)

// Stage names the pipeline stage an error was raised in.
type Stage string

const (
	StageParse       Stage = "parse"
	StageValidate    Stage = "validate"
	StageProject     Stage = "project"
	StageReduce      Stage = "reduce"
	StageReconstruct Stage = "reconstruct"
)

// NoIndex marks a Lap or Row field that does not apply.
const NoIndex = -1

func location(lap, row int) string {
	switch {
	case lap == NoIndex:
		return ""
	case row == NoIndex:
		return fmt.Sprintf(" (lap %d)", lap)
	}
	return fmt.Sprintf(" (lap %d, row %d)", lap, row)
}

// ParseError is returned when the input is not well-formed markup,
// or when a value inside it cannot be read as the type the schema declares.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", StageParse, ErrParse, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// SchemaError is returned for well-formed markup that lacks a required element
// or breaks a structural rule (e.g. lap chronology).
type SchemaError struct {
	Stage   Stage
	Lap     int
	Row     int
	Element string
	Reason  string
}

func NewSchemaError(stage Stage, element, reason string) *SchemaError {
	return &SchemaError{Stage: stage, Lap: NoIndex, Row: NoIndex, Element: element, Reason: reason}
}

func (e *SchemaError) At(lap, row int) *SchemaError {
	e.Lap, e.Row = lap, row
	return e
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s: <%s> %s%s", e.Stage, ErrSchema, e.Element, e.Reason, location(e.Lap, e.Row))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// MissingPositionError is returned when a sport requires a latitude/longitude
// pair and a trackpoint does not have one.
type MissingPositionError struct {
	Sport string
	Lap   int
	Row   int
}

func (e *MissingPositionError) Error() string {
	return fmt.Sprintf("%s: %s: %s requires a position on every trackpoint%s",
		StageValidate, ErrMissingPosition, e.Sport, location(e.Lap, e.Row))
}

func (e *MissingPositionError) Unwrap() error {
	return ErrMissingPosition
}

// EmptyActivityError is returned when an activity has no laps or no trackpoints.
type EmptyActivityError struct {
	Stage Stage
	Laps  int
}

func (e *EmptyActivityError) Error() string {
	return fmt.Sprintf("%s: %s: %d laps, 0 trackpoints", e.Stage, ErrEmptyActivity, e.Laps)
}

func (e *EmptyActivityError) Unwrap() error {
	return ErrEmptyActivity
}

// ReconstructionError means reduction produced an inconsistent activity.
// It always indicates a bug; the document must not be emitted.
type ReconstructionError struct {
	Lap int
	Row int
	Err error
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("%s: %s%s: %v", StageReconstruct, ErrReconstruction, location(e.Lap, e.Row), e.Err)
}

func (e *ReconstructionError) Unwrap() []error {
	return []error{ErrReconstruction, e.Err}
}

// StageOf reports the stage a pipeline error was raised in, or "" if unknown.
func StageOf(err error) Stage {
	var (
		pe *ParseError
		se *SchemaError
		me *MissingPositionError
		ee *EmptyActivityError
		re *ReconstructionError
	)
	switch {
	case errors.As(err, &re):
		return StageReconstruct
	case errors.As(err, &pe):
		return StageParse
	case errors.As(err, &se):
		return se.Stage
	case errors.As(err, &me):
		return StageValidate
	case errors.As(err, &ee):
		return ee.Stage
	}
	return ""
}
