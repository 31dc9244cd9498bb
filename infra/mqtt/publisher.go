package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	coremqtt "github.com/kilianp07/rebalance/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher records relocation orders in memory for tests.
type MockPublisher struct {
	Orders     []coremqtt.RelocationOrder
	FailIDs    map[string]bool
	AckResults map[string]bool
	mu         sync.Mutex
}

var _ coremqtt.Publisher = (*MockPublisher)(nil)

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		FailIDs:    make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// SendRelocation records the order or returns an error if the unit is
// configured to fail.
func (m *MockPublisher) SendRelocation(ctx context.Context, order coremqtt.RelocationOrder) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[order.UnitID] {
		return "", fmt.Errorf("publish failed for %s", order.UnitID)
	}
	m.Orders = append(m.Orders, order)
	commandID := fmt.Sprintf("cmd-%s-%s", order.RunID, order.UnitID)
	m.AckResults[commandID] = true
	return commandID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(commandID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[commandID]
	m.mu.Unlock()
	if !exists {
		return false, coremqtt.ErrUnknownCommand
	}
	return ok, nil
}

// Forget drops the stored acknowledgment result.
func (m *MockPublisher) Forget(commandID string) {
	m.mu.Lock()
	delete(m.AckResults, commandID)
	m.mu.Unlock()
}

// Sent returns a copy of the recorded orders.
func (m *MockPublisher) Sent() []coremqtt.RelocationOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.RelocationOrder(nil), m.Orders...)
}
