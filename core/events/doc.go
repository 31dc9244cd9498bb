// Package events defines the relocation events emitted on the event bus.
//
// Available event types:
//   - RunEvent: an allocation run finished (successfully or not), with the
//     outcome of every target and order
//   - TargetEvent: a single target has been processed
//   - OrderEvent: a relocation order was published to a unit
package events
