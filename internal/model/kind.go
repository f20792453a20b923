package model

import "strings"

// Kind classifies how an item relates to the day window. It is computed
// once per template during materialization and never re-derived from the
// boolean columns downstream.
type Kind int

const (
	// KindFloating items carry no time of their own and are packed into
	// free gaps by the day scheduler.
	KindFloating Kind = iota
	// KindFixed items have a nominal start time and may slip later, but
	// never earlier and never into the past.
	KindFixed
	// KindRoutine items behave like fixed items but are always placed,
	// even when that means moving well past their nominal time.
	KindRoutine
	// KindAppointment items are authoritative: they keep their exact
	// time or are reported as unplaceable, never adjusted.
	KindAppointment
)

func (k Kind) String() string {
	switch k {
	case KindAppointment:
		return "appointment"
	case KindRoutine:
		return "routine"
	case KindFixed:
		return "fixed"
	default:
		return "floating"
	}
}

// ParseKind maps a stored kind label onto the closed enum. Unknown or
// empty labels fall back to floating, the only kind that needs no time.
func ParseKind(raw string) Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "appointment":
		return KindAppointment
	case "routine":
		return KindRoutine
	case "fixed":
		return KindFixed
	default:
		return KindFloating
	}
}
