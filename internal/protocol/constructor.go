package protocol

import "fmt"

// EncodeCommand builds a command frame:
//
//	[0xAA, 0xBB, 0x03, opcode, operand, 0xEE]
//
// The magic bytes, length byte and terminator never vary.
func EncodeCommand(opcode, operand byte) []byte {
	return []byte{Magic1, Magic2, LengthByte, opcode, operand, Terminator}
}

// SelectFrame builds the command that switches the active input to port.
//
// The port is 1-based and is used as the operand without conversion. Values
// that do not fit in the operand byte are rejected; the device's actual port
// range is not checked here.
func SelectFrame(port int) ([]byte, error) {
	if err := ValidatePort(port); err != nil {
		return nil, err
	}
	return EncodeCommand(OpcodeSelect, byte(port)), nil
}

// QueryFrame builds the command that asks for the active input.
func QueryFrame() []byte {
	return EncodeCommand(OpcodeQuery, 0x00)
}

// EncodeResponse builds a query reply carrying the 0-based raw port, in the
// format TESmart devices answer with:
//
//	[0xAA, 0xBB, 0x03, 0x11, rawPort, 0xEE]
func EncodeResponse(rawPort byte) []byte {
	return EncodeCommand(OpcodeQueryReply, rawPort)
}

// ValidatePort checks that a 1-based port can be carried by the operand byte.
func ValidatePort(port int) error {
	if port < 1 || port > MaxPort {
		return fmt.Errorf("port %d cannot be encoded (must be 1-%d)", port, MaxPort)
	}
	return nil
}
