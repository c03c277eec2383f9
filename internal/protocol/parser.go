package protocol

import (
	"errors"
	"fmt"
)

// Parse errors. They are wrapped with context, use errors.Is to test for them.
var (
	ErrFrameSize  = errors.New("invalid frame size")
	ErrBadMagic   = errors.New("invalid magic bytes")
	ErrBadLength  = errors.New("invalid length byte")
	ErrBadTrailer = errors.New("invalid terminator")
)

// DecodeCommand parses a 6-byte command frame as sent by a controller.
// All framing bytes are validated.
func DecodeCommand(data []byte) (CommandFrame, error) {
	if err := validateFraming(data, true); err != nil {
		return CommandFrame{}, err
	}
	return CommandFrame{
		Opcode:  data[OffsetOpcode],
		Operand: data[OffsetOperand],
	}, nil
}

// ParseResponse parses a query reply.
//
// The reply must be exactly FrameSize bytes; anything shorter is a truncated
// reply and is never interpreted. When strict is false only the length is
// checked, which matches what deployed devices have been observed to need.
// When strict is true the magic bytes and terminator must also match.
func ParseResponse(data []byte, strict bool) (ResponseFrame, error) {
	var r ResponseFrame
	if err := validateFraming(data, strict); err != nil {
		return r, err
	}
	copy(r.Raw[:], data)
	return r, nil
}

func validateFraming(data []byte, strict bool) error {
	if len(data) != FrameSize {
		return fmt.Errorf("%w: %d bytes (expected %d)", ErrFrameSize, len(data), FrameSize)
	}
	if !strict {
		return nil
	}
	if data[OffsetMagic1] != Magic1 || data[OffsetMagic2] != Magic2 {
		return fmt.Errorf("%w: 0x%02X 0x%02X (expected 0x%02X 0x%02X)",
			ErrBadMagic, data[OffsetMagic1], data[OffsetMagic2], Magic1, Magic2)
	}
	if data[OffsetLength] != LengthByte {
		return fmt.Errorf("%w: 0x%02X (expected 0x%02X)", ErrBadLength, data[OffsetLength], LengthByte)
	}
	if data[OffsetTerminator] != Terminator {
		return fmt.Errorf("%w: 0x%02X (expected 0x%02X)", ErrBadTrailer, data[OffsetTerminator], Terminator)
	}
	return nil
}
