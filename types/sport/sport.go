package sport

import (
	"fmt"
	"regexp"
)

type Sport int

const (
	Cycle Sport = iota
	Run
	Swim
	Other
	Unknown Sport = -1
)

var AllSportNames = []string{
	Cycle.String(),
	Run.String(),
	Swim.String(),
	Other.String(),
}

var (
	sportCycle = regexp.MustCompile(`(?i)cycl|bike|biking`)
	sportRun   = regexp.MustCompile(`(?i)run`)
	sportSwim  = regexp.MustCompile(`(?i)swim`)
	sportOther = regexp.MustCompile(`(?i)^other$`)
	sportAuto  = regexp.MustCompile(`(?i)^(auto|unknown)$`)
)

// String implements the Stringer interface.
func (s Sport) String() string {
	switch s {
	case Cycle:
		return "Bike"
	case Run:
		return "Run"
	case Swim:
		return "Swim"
	case Other:
		return "Other"
	}
	return "Unknown"
}

// Emoji returns a single emoji representation of the sport.
func (s Sport) Emoji() string {
	switch s {
	case Cycle:
		return "🚴"
	case Run:
		return "🏃"
	case Swim:
		return "🏊"
	case Other:
		return "🤸"
	}
	return "❓"
}

// IsKnown returns true if the sport is not Unknown.
func (s Sport) IsKnown() bool {
	return s >= Cycle && s <= Other
}

// RequiresPosition returns whether every trackpoint of an activity
// of this sport must carry a latitude/longitude pair.
func (s Sport) RequiresPosition() bool {
	return s == Cycle || s == Run
}

// TCXName is the Activity Sport attribute written for the target platform.
// The schema only enumerates Running, Biking and Other, and TrainingPeaks
// refuses pool swims declared any other way, so swims go out as Other.
func (s Sport) TCXName() string {
	switch s {
	case Cycle:
		return "Biking"
	case Run:
		return "Running"
	}
	return "Other"
}

// FromString parses prompt-style (Bike, Run, Swim, Other)
// and TCX-style (Biking, Running) names.
func FromString(str string) Sport {
	switch {
	case sportCycle.MatchString(str):
		return Cycle
	case sportRun.MatchString(str):
		return Run
	case sportSwim.MatchString(str):
		return Swim
	case sportOther.MatchString(str):
		return Other
	}
	return Unknown
}

// Set implements pflag.Value.
// "auto" and "unknown" reset s to Unknown, deferring to the document's own sport.
func (s *Sport) Set(str string) error {
	if sportAuto.MatchString(str) {
		*s = Unknown
		return nil
	}
	v := FromString(str)
	if !v.IsKnown() {
		return &UnknownSportError{Name: str}
	}
	*s = v
	return nil
}

// Type implements pflag.Value.
func (s *Sport) Type() string {
	return "sport"
}

type UnknownSportError struct {
	Name string
}

func (e *UnknownSportError) Error() string {
	return fmt.Sprintf("unknown sport %q (want one of Bike, Run, Swim, Other, auto)", e.Name)
}
