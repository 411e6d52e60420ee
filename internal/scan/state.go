package scan

import (
	"errors"
)

var (
	// ErrNoBoundingBox is returned when a state needs a box that has not
	// been placed yet.
	ErrNoBoundingBox = errors.New("scan: no bounding box")

	// ErrInvalidTransition is returned for unknown target states.
	ErrInvalidTransition = errors.New("scan: invalid state transition")
)

// State is the phase of a scan.
type State int

const (
	Ready State = iota
	DefineBoundingBox
	Scanning
	AdjustingOrigin
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case DefineBoundingBox:
		return "define-bounding-box"
	case Scanning:
		return "scanning"
	case AdjustingOrigin:
		return "adjusting-origin"
	}
	return "unknown"
}

func (s State) valid() bool {
	return s >= Ready && s <= AdjustingOrigin
}

// Advisory is a problem found while changing state. The transition still
// happens; the host decides whether to warn the user or go back.
type Advisory int

const (
	// BoxUnreasonablySized means an edge is outside [0.01, 5] or the
	// volume is below 0.0005.
	BoxUnreasonablySized Advisory = iota
	// QualityLow means too few tracked points fall inside the box.
	QualityLow
	// ScanIncomplete means coverage has not reached 100%.
	ScanIncomplete
)

func (a Advisory) String() string {
	switch a {
	case BoxUnreasonablySized:
		return "box-unreasonably-sized"
	case QualityLow:
		return "quality-low"
	case ScanIncomplete:
		return "scan-incomplete"
	}
	return "unknown"
}

// Message returns a user-facing description of the advisory.
func (a Advisory) Message() string {
	switch a {
	case BoxUnreasonablySized:
		return "Each dimension of the bounding box should be at least 1 cm and at most 5 m, with a volume of at least 500 cubic cm."
	case QualityLow:
		return "This scan does not have enough detail to build a good reference object."
	case ScanIncomplete:
		return "The object was not scanned from all sides."
	}
	return ""
}
