// Package auditcodec encodes and decodes the versioned, CRC-framed TLV
// records written to the audit log, grounded on
// orig:src/persist/audit_log_format.hpp, built on internal/crcx.
package auditcodec

import (
	"fmt"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/crcx"
)

// RecordType identifies the record kind in the framing header.
type RecordType uint32

const (
	RecordReserved RecordType = iota
	RecordDivergence
	RecordSequenceGap
)

// SchemaVersionV1 is the only schema version currently emitted.
const SchemaVersionV1 uint16 = 1

// Payload sizes for schema v1, per spec.md §4.9/§6.
const (
	DivergencePayloadV1Size = 62
	GapPayloadV1Size        = 30
)

// HeaderSize is [type:u32 LE][payload_len:u32 LE].
const HeaderSize = 8

// TrailerSize is the trailing [crc32c:u32 LE].
const TrailerSize = 4

// RecordSize returns the total on-disk size of a record with the given
// payload length.
func RecordSize(payloadLen int) int { return HeaderSize + payloadLen + TrailerSize }

// DecodeError enumerates decode_record's outcomes (spec.md §4.9).
type DecodeError int

const (
	Ok DecodeError = iota
	TruncatedAtEnd
	TruncatedMidRecord
	InvalidType
	VersionMismatch
	InvalidLength
	InvalidCrc
)

func (e DecodeError) String() string {
	switch e {
	case Ok:
		return "Ok"
	case TruncatedAtEnd:
		return "TruncatedAtEnd"
	case TruncatedMidRecord:
		return "TruncatedMidRecord"
	case InvalidType:
		return "InvalidType"
	case VersionMismatch:
		return "VersionMismatch"
	case InvalidLength:
		return "InvalidLength"
	case InvalidCrc:
		return "InvalidCrc"
	default:
		return "Unknown"
	}
}

// IsGracefulEOF reports whether err is the zero-length-remainder EOF case.
// TruncatedMidRecord (non-zero remainder, insufficient for a full record) is
// never graceful: it is genuine tail corruption and must be counted, per
// spec.md §4.9.
func IsGracefulEOF(err DecodeError) bool { return err == TruncatedAtEnd }

// DivergencePayload is the v1 divergence record payload (spec.md §6).
type DivergencePayload struct {
	DivergenceType  uint8
	InternalStatus  uint8
	DropCopyStatus  uint8
	Fingerprint     uint64
	InternalCumQty  int64
	DropCopyCumQty  int64
	InternalAvgPx   int64
	DropCopyAvgPx   int64
	InternalTsNanos uint64
	DropCopyTsNanos uint64
}

// GapPayload is the v1 sequence-gap record payload (spec.md §6).
type GapPayload struct {
	Source        uint8
	Kind          uint8
	SessionID     uint16
	ExpectedSeq   uint64
	SeenSeq       uint64
	DetectTsNanos uint64
}

func encodeDivergencePayload(d DivergencePayload, out []byte) {
	crcx.PutUint16LE(out[0:2], SchemaVersionV1)
	out[2] = d.DivergenceType
	out[3] = d.InternalStatus
	out[4] = d.DropCopyStatus
	out[5] = 0 // reserved
	crcx.PutUint64LE(out[6:14], d.Fingerprint)
	crcx.PutInt64LE(out[14:22], d.InternalCumQty)
	crcx.PutInt64LE(out[22:30], d.DropCopyCumQty)
	crcx.PutInt64LE(out[30:38], d.InternalAvgPx)
	crcx.PutInt64LE(out[38:46], d.DropCopyAvgPx)
	crcx.PutUint64LE(out[46:54], d.InternalTsNanos)
	crcx.PutUint64LE(out[54:62], d.DropCopyTsNanos)
}

func decodeDivergencePayload(payload []byte) (DivergencePayload, DecodeError) {
	var d DivergencePayload
	if len(payload) != DivergencePayloadV1Size {
		return d, InvalidLength
	}
	if schema := crcx.Uint16LE(payload[0:2]); schema != SchemaVersionV1 {
		return d, VersionMismatch
	}
	d.DivergenceType = payload[2]
	d.InternalStatus = payload[3]
	d.DropCopyStatus = payload[4]
	d.Fingerprint = crcx.Uint64LE(payload[6:14])
	d.InternalCumQty = crcx.Int64LE(payload[14:22])
	d.DropCopyCumQty = crcx.Int64LE(payload[22:30])
	d.InternalAvgPx = crcx.Int64LE(payload[30:38])
	d.DropCopyAvgPx = crcx.Int64LE(payload[38:46])
	d.InternalTsNanos = crcx.Uint64LE(payload[46:54])
	d.DropCopyTsNanos = crcx.Uint64LE(payload[54:62])
	return d, Ok
}

func encodeGapPayload(g GapPayload, out []byte) {
	crcx.PutUint16LE(out[0:2], SchemaVersionV1)
	out[2] = g.Source
	out[3] = g.Kind
	crcx.PutUint16LE(out[4:6], g.SessionID)
	crcx.PutUint64LE(out[6:14], g.ExpectedSeq)
	crcx.PutUint64LE(out[14:22], g.SeenSeq)
	crcx.PutUint64LE(out[22:30], g.DetectTsNanos)
}

func decodeGapPayload(payload []byte) (GapPayload, DecodeError) {
	var g GapPayload
	if len(payload) != GapPayloadV1Size {
		return g, InvalidLength
	}
	if schema := crcx.Uint16LE(payload[0:2]); schema != SchemaVersionV1 {
		return g, VersionMismatch
	}
	g.Source = payload[2]
	g.Kind = payload[3]
	g.SessionID = crcx.Uint16LE(payload[4:6])
	g.ExpectedSeq = crcx.Uint64LE(payload[6:14])
	g.SeenSeq = crcx.Uint64LE(payload[14:22])
	g.DetectTsNanos = crcx.Uint64LE(payload[22:30])
	return g, Ok
}

func writeHeader(buf []byte, recType RecordType, payloadLen int) {
	crcx.PutUint32LE(buf[0:4], uint32(recType))
	crcx.PutUint32LE(buf[4:8], uint32(payloadLen))
}

// EncodeDivergence serializes a v1 divergence record (header + payload +
// CRC trailer) into out, returning the number of bytes written. out must be
// at least RecordSize(DivergencePayloadV1Size) bytes.
func EncodeDivergence(d DivergencePayload, out []byte) (int, error) {
	needed := RecordSize(DivergencePayloadV1Size)
	if len(out) < needed {
		return 0, fmt.Errorf("auditcodec: buffer too small: have %d need %d", len(out), needed)
	}
	writeHeader(out, RecordDivergence, DivergencePayloadV1Size)
	encodeDivergencePayload(d, out[HeaderSize:HeaderSize+DivergencePayloadV1Size])
	crc := crcx.Checksum(out[:HeaderSize+DivergencePayloadV1Size])
	crcx.PutUint32LE(out[HeaderSize+DivergencePayloadV1Size:needed], crc)
	return needed, nil
}

// EncodeGap serializes a v1 sequence-gap record into out. out must be at
// least RecordSize(GapPayloadV1Size) bytes.
func EncodeGap(g GapPayload, out []byte) (int, error) {
	needed := RecordSize(GapPayloadV1Size)
	if len(out) < needed {
		return 0, fmt.Errorf("auditcodec: buffer too small: have %d need %d", len(out), needed)
	}
	writeHeader(out, RecordSequenceGap, GapPayloadV1Size)
	encodeGapPayload(g, out[HeaderSize:HeaderSize+GapPayloadV1Size])
	crc := crcx.Checksum(out[:HeaderSize+GapPayloadV1Size])
	crcx.PutUint32LE(out[HeaderSize+GapPayloadV1Size:needed], crc)
	return needed, nil
}

// DecodedRecord holds the outcome of decoding one framed record.
type DecodedRecord struct {
	Type          RecordType
	SchemaVersion uint16
	PayloadLen    uint32
	Divergence    DivergencePayload
	Gap           GapPayload
}

// Decode parses one framed record from the head of data. A zero-length data
// slice is the graceful end-of-file case (TruncatedAtEnd); a non-zero but
// insufficient remainder is TruncatedMidRecord, a counted error since it
// means the file ends mid-record rather than on a clean boundary. Any other
// truncation, type, version, length, or CRC failure is likewise a counted
// error, per spec.md §4.9.
func Decode(data []byte) (DecodedRecord, DecodeError) {
	var rec DecodedRecord
	if len(data) == 0 {
		return rec, TruncatedAtEnd
	}
	if len(data) < HeaderSize {
		return rec, TruncatedMidRecord
	}

	recType := RecordType(crcx.Uint32LE(data[0:4]))
	payloadLen := crcx.Uint32LE(data[4:8])
	total := RecordSize(int(payloadLen))
	if len(data) < total {
		return rec, TruncatedMidRecord
	}

	if recType != RecordDivergence && recType != RecordSequenceGap {
		return rec, InvalidType
	}

	payload := data[HeaderSize : HeaderSize+int(payloadLen)]
	crcExpected := crcx.Uint32LE(data[HeaderSize+int(payloadLen) : total])
	crcComputed := crcx.Checksum(data[:HeaderSize+int(payloadLen)])
	if crcExpected != crcComputed {
		return rec, InvalidCrc
	}

	rec.Type = recType
	rec.PayloadLen = payloadLen
	if len(payload) < 2 {
		return rec, InvalidLength
	}
	rec.SchemaVersion = crcx.Uint16LE(payload[0:2])
	if rec.SchemaVersion > SchemaVersionV1 {
		return rec, VersionMismatch
	}

	switch recType {
	case RecordDivergence:
		div, err := decodeDivergencePayload(payload)
		if err != Ok {
			return rec, err
		}
		rec.Divergence = div
	case RecordSequenceGap:
		gap, err := decodeGapPayload(payload)
		if err != Ok {
			return rec, err
		}
		rec.Gap = gap
	}

	return rec, Ok
}
