// Package wirecapture implements the raw exec-event wire-capture file
// format: fixed-shape binary records framed with a length prefix and a
// CRC32C trailer, grounded on orig:src/persist/wire_log_format.hpp.
package wirecapture

import (
	"fmt"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/crcx"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
)

// idFieldSize is the on-wire size of one execevent.ID (length byte + the
// fixed IDCapacity byte buffer).
const idFieldSize = 1 + execevent.IDCapacity

// ExecEventPayloadSize is the fixed size of one serialized ExecEvent.
// IngestNanos is a local monotonic timestamp (internal/clock) and carries no
// meaning once replayed on another process, so it is deliberately not part
// of the wire shape.
const ExecEventPayloadSize = 1 + 8 + 2 + 8 + 8 + 1 + 1 + 8 + 8 + 8 + idFieldSize*3

// FrameSize returns the total on-disk size of a record framing the given
// payload length: [length:u32 LE][capture_ts_ns:u64 LE][payload][checksum:u32 LE].
func FrameSize(payloadLen int) int { return 4 + 8 + payloadLen + 4 }

// DefaultFilenamePrefix is the filename prefix new capture files use.
const DefaultFilenamePrefix = "wire_capture_"

func putID(out []byte, id execevent.ID) {
	out[0] = id.Len
	copy(out[1:1+execevent.IDCapacity], id.Bytes[:])
}

func getID(in []byte) execevent.ID {
	var id execevent.ID
	id.Len = in[0]
	copy(id.Bytes[:], in[1:1+execevent.IDCapacity])
	return id
}

// EncodeExecEvent serializes ev into out, which must be at least
// ExecEventPayloadSize bytes.
func EncodeExecEvent(ev execevent.ExecEvent, out []byte) {
	out[0] = byte(ev.Source)
	crcx.PutUint64LE(out[1:9], ev.SeqNum)
	crcx.PutUint16LE(out[9:11], ev.SessionID)
	crcx.PutUint64LE(out[11:19], ev.TransactTime)
	crcx.PutUint64LE(out[19:27], ev.SendingTime)
	out[27] = byte(ev.ExecType)
	out[28] = byte(ev.OrdStatus)
	crcx.PutInt64LE(out[29:37], ev.CumQty)
	crcx.PutInt64LE(out[37:45], ev.LastQty)
	crcx.PutInt64LE(out[45:53], ev.PriceMicro)
	off := 53
	putID(out[off:off+idFieldSize], ev.ClOrdID)
	off += idFieldSize
	putID(out[off:off+idFieldSize], ev.OrderID)
	off += idFieldSize
	putID(out[off:off+idFieldSize], ev.ExecID)
}

// DecodeExecEvent parses a fixed ExecEventPayloadSize payload.
func DecodeExecEvent(payload []byte) (execevent.ExecEvent, error) {
	var ev execevent.ExecEvent
	if len(payload) != ExecEventPayloadSize {
		return ev, fmt.Errorf("wirecapture: bad payload length %d, want %d", len(payload), ExecEventPayloadSize)
	}
	ev.Source = execevent.Source(payload[0])
	ev.SeqNum = crcx.Uint64LE(payload[1:9])
	ev.SessionID = crcx.Uint16LE(payload[9:11])
	ev.TransactTime = crcx.Uint64LE(payload[11:19])
	ev.SendingTime = crcx.Uint64LE(payload[19:27])
	ev.ExecType = execevent.ExecType(payload[27])
	ev.OrdStatus = execevent.OrdStatus(payload[28])
	ev.CumQty = crcx.Int64LE(payload[29:37])
	ev.LastQty = crcx.Int64LE(payload[37:45])
	ev.PriceMicro = crcx.Int64LE(payload[45:53])
	off := 53
	ev.ClOrdID = getID(payload[off : off+idFieldSize])
	off += idFieldSize
	ev.OrderID = getID(payload[off : off+idFieldSize])
	off += idFieldSize
	ev.ExecID = getID(payload[off : off+idFieldSize])
	return ev, nil
}

// EncodeRecord frames payload with its capture timestamp and a CRC32C
// trailer into out, which must be at least FrameSize(len(payload)) bytes,
// per spec.md §4.11. Layout: [payload_len:u32 LE][capture_ts_ns:u64
// LE][payload][checksum:u32 LE], where checksum covers capture_ts_ns and
// payload (matching the original's crc32c-over-span-following-length).
func EncodeRecord(payload []byte, captureTsNanos uint64, out []byte) (int, error) {
	const tsSize = 8
	needed := 4 + tsSize + len(payload) + 4
	if len(out) < needed {
		return 0, fmt.Errorf("wirecapture: buffer too small: have %d need %d", len(out), needed)
	}
	crcx.PutUint32LE(out[0:4], uint32(tsSize+len(payload)))
	crcx.PutUint64LE(out[4:12], captureTsNanos)
	copy(out[12:12+len(payload)], payload)
	crc := crcx.Checksum(out[4 : 12+len(payload)])
	crcx.PutUint32LE(out[12+len(payload):needed], crc)
	return needed, nil
}

// RecordView is one parsed-but-not-yet-validated record.
type RecordView struct {
	CaptureTsNanos uint64
	Payload        []byte
	Checksum       uint32
}

// ParseRecord reads one record from the head of data, returning the number
// of bytes it occupies. ok is false if data is too short to contain a full
// record (truncated tail), mirroring orig:src/persist/wire_log_format.hpp's
// parse_record.
func ParseRecord(data []byte) (view RecordView, consumed int, ok bool) {
	const tsSize = 8
	if len(data) < 4 {
		return RecordView{}, 0, false
	}
	bodyLen := int(crcx.Uint32LE(data[0:4]))
	total := 4 + bodyLen + 4
	if bodyLen < tsSize || len(data) < total {
		return RecordView{}, 0, false
	}
	view.CaptureTsNanos = crcx.Uint64LE(data[4 : 4+tsSize])
	view.Payload = data[4+tsSize : 4+bodyLen]
	view.Checksum = crcx.Uint32LE(data[4+bodyLen : total])
	return view, total, true
}

// ValidateRecord reports whether the record's checksum matches its
// timestamp+payload bytes.
func ValidateRecord(view RecordView) bool {
	buf := make([]byte, 8+len(view.Payload))
	crcx.PutUint64LE(buf[0:8], view.CaptureTsNanos)
	copy(buf[8:], view.Payload)
	return crcx.Checksum(buf) == view.Checksum
}
