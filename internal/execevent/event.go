// Package execevent defines the normalized execution-report record that
// flows from the external ingestion front-end (FIX parser, pub/sub
// subscriber, or wire-capture replay) into the reconciliation core.
package execevent

import "fmt"

// Source identifies which venue feed an ExecEvent arrived on.
type Source uint8

const (
	Primary Source = iota
	DropCopy
)

func (s Source) String() string {
	if s == DropCopy {
		return "DropCopy"
	}
	return "Primary"
}

// ExecType is the FIX-style execution report type.
type ExecType uint8

const (
	ExecNew ExecType = iota
	ExecPartialFill
	ExecFill
	ExecCancel
	ExecReplace
	ExecRejected
	ExecUnknown
)

// OrdStatus is the order lifecycle status carried by an execution report.
// This is the reconciliation-relevant order status, not the FIX tag 39
// value space verbatim (PendingNew and New are kept distinct because the
// order-lifecycle validator treats them identically but callers may care).
type OrdStatus uint8

const (
	StatusUnknown OrdStatus = iota
	StatusPendingNew
	StatusNew
	StatusWorking
	StatusPartiallyFilled
	StatusFilled
	StatusCancelPending
	StatusCanceled
	StatusReplaced
	StatusRejected
)

func (s OrdStatus) String() string {
	switch s {
	case StatusPendingNew:
		return "PendingNew"
	case StatusNew:
		return "New"
	case StatusWorking:
		return "Working"
	case StatusPartiallyFilled:
		return "PartiallyFilled"
	case StatusFilled:
		return "Filled"
	case StatusCancelPending:
		return "CancelPending"
	case StatusCanceled:
		return "Canceled"
	case StatusReplaced:
		return "Replaced"
	case StatusRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// IDCapacity bounds ClOrdID/OrderID/ExecID length, matching the original
// fixed-shape wire layout (spec.md §3).
const IDCapacity = 32

// ID is a bounded-length identifier stored inline, never heap-allocated.
type ID struct {
	Bytes [IDCapacity]byte
	Len   uint8
}

// SetString truncates to IDCapacity bytes.
func (id *ID) SetString(s string) {
	n := copy(id.Bytes[:], s)
	id.Len = uint8(n)
}

func (id ID) String() string {
	return string(id.Bytes[:id.Len])
}

// Equal compares two IDs by their valid byte range.
func (id ID) Equal(other ID) bool {
	if id.Len != other.Len {
		return false
	}
	for i := 0; i < int(id.Len); i++ {
		if id.Bytes[i] != other.Bytes[i] {
			return false
		}
	}
	return true
}

// ExecEvent is the normalized, trivially-copyable execution report. It is
// passed by value through rings/channels and owns no heap memory.
type ExecEvent struct {
	Source       Source
	SeqNum       uint64
	SessionID    uint16
	TransactTime uint64 // nanoseconds
	SendingTime  uint64 // nanoseconds
	IngestNanos  int64  // monotonic ingest timestamp (see internal/clock)
	ExecType     ExecType
	OrdStatus    OrdStatus
	CumQty       int64
	LastQty      int64
	PriceMicro   int64 // price in signed micro-units (1 unit = 1e-6 of price)
	ClOrdID      ID
	OrderID      ID
	ExecID       ID
}

// SelectTimestamp returns TransactTime if set, else SendingTime, matching
// orig:src/core/order_state.hpp's select_event_timestamp.
func (e ExecEvent) SelectTimestamp() uint64 {
	if e.TransactTime != 0 {
		return e.TransactTime
	}
	return e.SendingTime
}

func (e ExecEvent) String() string {
	return fmt.Sprintf("ExecEvent{src=%s seq=%d session=%d clord=%s status=%s cum=%d px=%d}",
		e.Source, e.SeqNum, e.SessionID, e.ClOrdID, e.OrdStatus, e.CumQty, e.PriceMicro)
}
