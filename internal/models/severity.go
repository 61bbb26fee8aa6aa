package models

import "fmt"

// Severity is the index of a class in the severity model's output distribution.
type Severity int

const (
	SeverityNone     Severity = 0
	SeverityModerate Severity = 1
	SeveritySevere   Severity = 2
	SeverityExtreme  Severity = 3
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	case SeverityExtreme:
		return "extreme"
	default:
		return fmt.Sprintf("class_%d", int(s))
	}
}
