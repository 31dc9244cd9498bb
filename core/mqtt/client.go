// Package mqtt defines the transport contract used to hand relocation orders
// to units or their field crews.
package mqtt

import (
	"context"
	"time"
)

// RelocationOrder asks a unit to move to new coordinates.
type RelocationOrder struct {
	RunID  string  `json:"run_id"`
	UnitID string  `json:"unit_id"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	// Target is the label of the claiming target.
	Target string `json:"target,omitempty"`
}

// Publisher sends relocation orders and tracks their acknowledgment.
type Publisher interface {
	// SendRelocation publishes the order and returns the command identifier
	// used to track the acknowledgment.
	SendRelocation(ctx context.Context, order RelocationOrder) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)

	// Forget stops tracking the acknowledgment of a command that will not be
	// waited for.
	Forget(commandID string)
}
