package attsession

import (
	"sync"
	"time"

	"github.com/trezcool/darasa/core/attendance"
)

// State is a Session's derived handshake state. It is never stored;
// it is computed from the session fields on every read.
type State int

const (
	// StateWaiting: active, roster not exhausted, no student handed to the device.
	StateWaiting State = iota
	// StateAssigned: active, the student at the cursor is awaiting a device outcome.
	StateAssigned
	// StateExhausted: active, every student has been resolved.
	StateExhausted
	// StateEnded: stopped; terminal.
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateAssigned:
		return "assigned"
	case StateExhausted:
		return "exhausted"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// RosterStudent is one student in a session's fixed roster snapshot.
type RosterStudent struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RollNumber string `json:"roll_number"`
	Section    string `json:"section"`
}

// Session is one run of the device-assisted attendance workflow for one
// class/date/teacher. The identifying fields and the roster snapshot are
// fixed at creation; the mutable fields are guarded by mu and only ever
// touched by the Service with mu held.
type Session struct {
	mu sync.Mutex

	ID        string
	ClassID   string
	TeacherID string
	Date      time.Time // calendar day; UTC midnight
	Roster    []RosterStudent
	CreatedAt time.Time

	cursor   int  // index of the next/current student; only ever increases
	active   bool // false once stopped; terminal
	assigned bool // the student at cursor has been handed to the device
	outcomes map[string]attendance.Status
}

// state derives the handshake state. mu must be held.
func (s *Session) state() State {
	switch {
	case !s.active:
		return StateEnded
	case s.cursor >= len(s.Roster):
		return StateExhausted
	case s.assigned:
		return StateAssigned
	}
	return StateWaiting
}

// counts tallies recorded outcomes. mu must be held.
func (s *Session) counts() (present, absent int) {
	for _, status := range s.outcomes {
		switch status {
		case attendance.StatusPresent:
			present++
		case attendance.StatusAbsent:
			absent++
		}
	}
	return present, absent
}
