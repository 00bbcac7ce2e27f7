// Package radioinfo turns the active network into the two radio info lines
// shown on the wireless settings screen.
package radioinfo

import "errors"

// Display target keys
const (
	KeyType   = "radio_info_type"
	KeyStatus = "radio_info_status"
)

const (
	NoRadioActive = "No radio active."
	subtypeSep    = " - "
	roamingSuffix = " (roaming)"
)

// ErrTargetNotFound is returned when a display target cannot be resolved
var ErrTargetNotFound = errors.New("display target not found")

// Snapshot is the active network as reported by the connectivity provider.
// A nil *Snapshot means no network is active.
type Snapshot struct {
	TypeName    string // "WIFI", "USB", "ETHERNET"
	SubtypeName string // may be empty
	Connected   bool
	Available   bool
	Roaming     bool
}

// State is the link state shown on the status line
type State int

const (
	StateDown State = iota
	StateAvailable
	StateConnected
)

// String returns the status text for the state
func (s State) String() string {
	switch s {
	case StateConnected:
		return "Connected!"
	case StateAvailable:
		return "Available!"
	default:
		return "Down..."
	}
}

// StateOf picks the state by priority: connected, then available, then down.
func StateOf(connected, available bool) State {
	switch {
	case connected:
		return StateConnected
	case available:
		return StateAvailable
	default:
		return StateDown
	}
}

// Summary holds the two radio info lines
type Summary struct {
	Type   string
	Status string
}

// Compute derives the summary for a snapshot
func Compute(s *Snapshot) Summary {
	if s == nil {
		return Summary{Type: NoRadioActive, Status: ""}
	}

	// Subtype is appended even when empty ("WIFI - ").
	status := StateOf(s.Connected, s.Available).String()
	if s.Roaming {
		status += roamingSuffix
	}

	return Summary{
		Type:   s.TypeName + subtypeSep + s.SubtypeName,
		Status: status,
	}
}

// Target is a display element that shows one line of text
type Target interface {
	SetText(text string) error
}

// Lookup resolves a display target by key
type Lookup interface {
	Target(key string) (Target, error)
}

// Fallbacks is the text shown on a line whose target cannot be resolved
type Fallbacks struct {
	Type   string
	Status string
}

// Deliver writes both lines to their targets and returns the text in effect.
// Each line falls back on its own; a missing type row never blanks the
// status row or the other way round.
func Deliver(targets Lookup, sum Summary, fb Fallbacks) Summary {
	return Summary{
		Type:   deliverLine(targets, KeyType, sum.Type, fb.Type),
		Status: deliverLine(targets, KeyStatus, sum.Status, fb.Status),
	}
}

func deliverLine(targets Lookup, key, text, fallback string) string {
	t, err := targets.Target(key)
	if err != nil {
		return fallback
	}
	if err := t.SetText(text); err != nil {
		_ = t.SetText(fallback)
		return fallback
	}
	return text
}

// Update computes the summary for s and delivers it
func Update(targets Lookup, s *Snapshot, fb Fallbacks) Summary {
	return Deliver(targets, Compute(s), fb)
}
