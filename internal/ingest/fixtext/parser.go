// Package fixtext is a minimal SOH-delimited FIX tag=value parser,
// grounded on original_source/src/ingest/fix_parser.{hpp,cpp}. It is
// deliberately boundary-only: no session management, no repeating
// groups, no checksum validation — just enough tag=value extraction to
// turn a single ExecutionReport message into an execevent.ExecEvent.
package fixtext

import (
	"strconv"
	"strings"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
)

// SOH is the FIX field separator (0x01).
const SOH = '\x01'

// Result classifies the outcome of parsing one message.
type Result uint8

const (
	Ok Result = iota
	MissingField
	Invalid
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "Ok"
	case MissingField:
		return "MissingField"
	default:
		return "Invalid"
	}
}

// Stats accumulates parse outcomes across a session, mirroring the
// original's ParseStats.
type Stats struct {
	Parsed uint64
	Failed uint64
}

func mapExecType(c byte) execevent.ExecType {
	switch c {
	case '0':
		return execevent.ExecNew
	case '1':
		return execevent.ExecPartialFill
	case '2':
		return execevent.ExecFill
	case '4':
		return execevent.ExecCancel
	case '5':
		return execevent.ExecReplace
	case '8':
		return execevent.ExecRejected
	default:
		return execevent.ExecUnknown
	}
}

func mapOrdStatus(c byte) execevent.OrdStatus {
	switch c {
	case '0':
		return execevent.StatusNew
	case 'A':
		return execevent.StatusPendingNew
	case '6':
		return execevent.StatusCancelPending
	case '1':
		return execevent.StatusPartiallyFilled
	case '2':
		return execevent.StatusFilled
	case '4':
		return execevent.StatusCanceled
	case '5':
		return execevent.StatusReplaced
	case '8':
		return execevent.StatusRejected
	default:
		return execevent.StatusUnknown
	}
}

// ParseExecReport parses one SOH-delimited tag=value FIX message into out.
// Recognized tags: 35 (MsgType, must be "8"), 150 (ExecType), 39
// (OrdStatus), 6 (AvgPx -> PriceMicro), 14 (CumQty), 17 (ExecID), 11
// (ClOrdID), 37 (OrderID), 52 (SendingTime), 60 (TransactTime). Unknown
// tags are skipped.
func ParseExecReport(msg string, out *execevent.ExecEvent) Result {
	var hasExecType, hasOrdStatus, hasPrice, hasCumQty, hasExecID, hasTime bool

	ptr := 0
	n := len(msg)
	for ptr < n {
		eq := strings.IndexByte(msg[ptr:], '=')
		if eq < 0 {
			break
		}
		tagStr := msg[ptr : ptr+eq]
		tag, err := strconv.Atoi(tagStr)
		if err != nil {
			return Invalid
		}
		valStart := ptr + eq + 1
		rel := strings.IndexByte(msg[valStart:], SOH)
		var valEnd int
		if rel < 0 {
			valEnd = n
			ptr = n
		} else {
			valEnd = valStart + rel
			ptr = valEnd + 1
		}
		val := msg[valStart:valEnd]

		switch tag {
		case 35:
			if val == "" || val[0] != '8' {
				return Invalid
			}
		case 150:
			if val == "" {
				return Invalid
			}
			out.ExecType = mapExecType(val[0])
			hasExecType = true
		case 39:
			if val == "" {
				return Invalid
			}
			out.OrdStatus = mapOrdStatus(val[0])
			hasOrdStatus = true
		case 6:
			px, perr := strconv.ParseInt(val, 10, 64)
			if perr != nil {
				return Invalid
			}
			out.PriceMicro = px
			hasPrice = true
		case 14:
			cum, cerr := strconv.ParseInt(val, 10, 64)
			if cerr != nil {
				return Invalid
			}
			out.CumQty = cum
			hasCumQty = true
		case 17:
			out.ExecID.SetString(val)
			hasExecID = true
		case 11:
			out.ClOrdID.SetString(val)
		case 37:
			out.OrderID.SetString(val)
		case 52:
			ts, terr := strconv.ParseUint(val, 10, 64)
			if terr != nil {
				return Invalid
			}
			out.SendingTime = ts
			hasTime = true
		case 60:
			ts, terr := strconv.ParseUint(val, 10, 64)
			if terr != nil {
				return Invalid
			}
			out.TransactTime = ts
			hasTime = true
		default:
			// unrecognized tag, skip
		}
	}

	if out.OrderID.Len == 0 && out.ClOrdID.Len == 0 {
		return MissingField
	}
	if !hasExecType || !hasOrdStatus || !hasPrice || !hasCumQty || !hasExecID || !hasTime {
		return MissingField
	}
	return Ok
}
