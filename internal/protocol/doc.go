// Package protocol implements the TESmart KVM switch control protocol.
//
// This package handles construction and parsing of the fixed-size binary
// frames exchanged with IP-connected TESmart-style KVM switches. It performs
// no I/O; see package kvm for the TCP client.
//
// # Frame Format
//
// Every command is exactly 6 bytes:
//   - Magic: 0xAA 0xBB
//   - Length: 0x03 (opcode + operand + terminator)
//   - Opcode: 0x01 (select input) or 0x10 (query active input)
//   - Operand: select: 1-based port number, query: 0x00
//   - Terminator: 0xEE
//
// Query replies are also 6 bytes. Byte 4 carries the active port.
//
// # Port Numbering
//
// The device reports the active port 0-based, while select commands take
// the port 1-based. A reply byte of 0x03 therefore means port 4. The offset
// is exposed as DefaultReplyPortOffset and can be overridden per client for
// firmware revisions that behave differently.
//
// # Usage Example
//
//	frame, err := protocol.SelectFrame(4)
//	if err != nil {
//	    return err
//	}
//	// frame = AA BB 03 01 04 EE
//
//	reply, err := protocol.ParseResponse(buf, false)
//	if err != nil {
//	    return err
//	}
//	port := reply.ActivePort(protocol.DefaultReplyPortOffset)
//
// # Error Handling
//
// Parse failures wrap one of ErrFrameSize, ErrBadMagic, ErrBadLength or
// ErrBadTrailer.
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package protocol
