package protocol

import (
	"fmt"
	"strings"
)

// Frame layout constants. Every command and reply is exactly FrameSize bytes.
const (
	FrameSize  = 6
	Magic1     = 0xAA
	Magic2     = 0xBB
	LengthByte = 0x03 // opcode + operand + terminator
	Terminator = 0xEE
)

// Byte offsets within a frame
const (
	OffsetMagic1     = 0
	OffsetMagic2     = 1
	OffsetLength     = 2
	OffsetOpcode     = 3
	OffsetOperand    = 4
	OffsetTerminator = 5
)

// Opcodes
const (
	OpcodeSelect     = 0x01 // Select input, operand = 1-based port
	OpcodeQuery      = 0x10 // Query active input, operand unused (0x00)
	OpcodeQueryReply = 0x11 // Opcode the device uses in its query reply
)

// DefaultReplyPortOffset converts the raw reply byte to a user-facing port.
// The device reports the active input 0-based while select commands take the
// port 1-based, so the reply needs +1. Some firmware revisions may differ,
// which is why callers can override it.
const DefaultReplyPortOffset = 1

// MaxPort is the largest port number that fits in the operand byte.
const MaxPort = 0xFF

// CommandFrame is a decoded 6-byte command.
type CommandFrame struct {
	Opcode  byte
	Operand byte
}

// Bytes returns the wire encoding of the command.
func (c CommandFrame) Bytes() []byte {
	return EncodeCommand(c.Opcode, c.Operand)
}

// IsSelect reports whether the command selects an input.
func (c CommandFrame) IsSelect() bool {
	return c.Opcode == OpcodeSelect
}

// IsQuery reports whether the command queries the active input.
func (c CommandFrame) IsQuery() bool {
	return c.Opcode == OpcodeQuery
}

// String returns a debug representation of the command
func (c CommandFrame) String() string {
	switch c.Opcode {
	case OpcodeSelect:
		return fmt.Sprintf("Select{port=%d}", c.Operand)
	case OpcodeQuery:
		return "Query{}"
	default:
		return fmt.Sprintf("Command{opcode=0x%02X, operand=0x%02X}", c.Opcode, c.Operand)
	}
}

// ResponseFrame is a raw 6-byte reply to a query command.
type ResponseFrame struct {
	Raw [FrameSize]byte
}

// RawPort returns the port byte exactly as the device sent it (0-based).
func (r ResponseFrame) RawPort() byte {
	return r.Raw[OffsetOperand]
}

// ActivePort returns the user-facing port number for the given reply offset.
func (r ResponseFrame) ActivePort(offset int) int {
	return int(r.RawPort()) + offset
}

// String returns a debug representation of the reply
func (r ResponseFrame) String() string {
	return fmt.Sprintf("Response{raw_port=%d, bytes=%s}", r.RawPort(), FormatHex(r.Raw[:]))
}

// OpcodeName returns a human-readable opcode name
func OpcodeName(opcode byte) string {
	switch opcode {
	case OpcodeSelect:
		return "select"
	case OpcodeQuery:
		return "query"
	case OpcodeQueryReply:
		return "query-reply"
	default:
		return fmt.Sprintf("unknown(0x%02X)", opcode)
	}
}

// FormatHex renders bytes the way they are usually written in device
// manuals, e.g. "AA BB 03 01 04 EE".
func FormatHex(data []byte) string {
	var b strings.Builder
	for i, v := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}
