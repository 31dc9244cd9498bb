package events

import "time"

// OrderEvent is published for each relocation order sent, or attempted, to a
// unit.
type OrderEvent struct {
	RunID     string
	CommandID string
	UnitID    string
	Err       error
	Time      time.Time
}
