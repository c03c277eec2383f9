package kvm

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of a failed switch operation
type ErrorType int

const (
	// ErrTypeResolution indicates the switch hostname could not be resolved
	ErrTypeResolution ErrorType = iota
	// ErrTypeConnection indicates the TCP connection could not be established
	// (refused, host or network unreachable)
	ErrTypeConnection
	// ErrTypeTransport indicates a write or read failed on an open connection
	ErrTypeTransport
	// ErrTypeTimeout indicates a connect, write or read deadline expired.
	// Timeouts are transport failures; IsTransportError reports true for them.
	ErrTypeTimeout
	// ErrTypeProtocol indicates the switch sent a reply that cannot be used
	// (truncated, or badly framed when strict framing is enabled)
	ErrTypeProtocol
	// ErrTypeValidation indicates the request could not be encoded
	ErrTypeValidation
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeResolution:
		return "Resolution Error"
	case ErrTypeConnection:
		return "Connection Error"
	case ErrTypeTransport:
		return "Transport Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeProtocol:
		return "Protocol Error"
	case ErrTypeValidation:
		return "Validation Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ConnectionSubtype narrows down ErrTypeConnection failures
type ConnectionSubtype int

const (
	ConnectionGeneral ConnectionSubtype = iota
	ConnectionRefused
	ConnectionHostUnreachable
	ConnectionNetworkUnreachable
	ConnectionReset
)

// DeviceError is returned by every failed Client operation
type DeviceError struct {
	Type      ErrorType         // Category of error
	Subtype   ConnectionSubtype // More specific connection failure (ErrTypeConnection only)
	Op        string            // Operation that failed ("select", "query")
	Message   string            // Human-readable error message
	Address   string            // Switch address host:port (for context)
	BytesRead int               // Reply bytes received before a protocol failure
	Err       error             // Underlying error (if any)
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Type.String())
	b.WriteString(": ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Address != "" {
		fmt.Fprintf(&b, " [%s]", e.Address)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps an error from dialing or socket I/O to a DeviceError.
// Errors that are already DeviceErrors are returned unchanged.
func ClassifyNetworkError(err error, op, address string) *DeviceError {
	if err == nil {
		return nil
	}

	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr
	}

	base := DeviceError{Op: op, Address: address, Err: err}

	// DNS failures first: a resolver timeout is still a resolution problem
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		base.Type = ErrTypeResolution
		base.Message = fmt.Sprintf("cannot resolve host %q", dnsErr.Name)
		return &base
	}

	if os.IsTimeout(err) {
		base.Type = ErrTypeTimeout
		base.Message = "operation timed out"
		return &base
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		base.Type = ErrTypeConnection
		base.Subtype = ConnectionRefused
		base.Message = "switch refused connection"
		return &base
	}
	if errors.Is(err, syscall.EHOSTUNREACH) {
		base.Type = ErrTypeConnection
		base.Subtype = ConnectionHostUnreachable
		base.Message = "host unreachable"
		return &base
	}
	if errors.Is(err, syscall.ENETUNREACH) {
		base.Type = ErrTypeConnection
		base.Subtype = ConnectionNetworkUnreachable
		base.Message = "network unreachable"
		return &base
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		base.Type = ErrTypeConnection
		base.Subtype = ConnectionReset
		base.Message = "connection reset by switch"
		return &base
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		base.Type = ErrTypeConnection
		base.Message = "cannot connect to switch"
		return &base
	}

	base.Type = ErrTypeTransport
	base.Message = "network error occurred"
	return &base
}

// newDialError classifies a failure to establish the connection. Anything that
// is not a resolution failure or timeout is reported as a connection error.
func newDialError(err error, op, address string) *DeviceError {
	devErr := ClassifyNetworkError(err, op, address)
	if devErr.Type == ErrTypeTransport {
		devErr.Type = ErrTypeConnection
		devErr.Message = "cannot connect to switch"
	}
	return devErr
}

// newWriteError classifies a failure to send a command frame
func newWriteError(err error, op, address string) *DeviceError {
	devErr := ClassifyNetworkError(err, op, address)
	if devErr.Type == ErrTypeTransport {
		devErr.Message = "failed to send command"
	}
	return devErr
}

// newReadError classifies a failure while waiting for the query reply.
// A peer that closes the connection early produces a protocol error: the
// partial reply is discarded, never interpreted.
func newReadError(err error, op, address string, n int) *DeviceError {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &DeviceError{
			Type:      ErrTypeProtocol,
			Op:        op,
			Message:   fmt.Sprintf("short reply: received %d of 6 bytes", n),
			Address:   address,
			BytesRead: n,
			Err:       err,
		}
	}
	devErr := ClassifyNetworkError(err, op, address)
	devErr.BytesRead = n
	if devErr.Type == ErrTypeTransport {
		devErr.Message = "failed to read reply"
	}
	return devErr
}

// NewProtocolError creates an error for an unusable reply
func NewProtocolError(op, address, message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeProtocol,
		Op:      op,
		Message: message,
		Address: address,
		Err:     err,
	}
}

// NewValidationError creates an error for a request that cannot be encoded
func NewValidationError(op, message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeValidation,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

func errorType(err error) (ErrorType, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type, true
	}
	return 0, false
}

// IsResolutionError checks if an error is a hostname resolution failure
func IsResolutionError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeResolution
}

// IsConnectionError checks if an error is a failure to connect
func IsConnectionError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeConnection
}

// IsTransportError checks if an error is a write/read failure, including timeouts
func IsTransportError(err error) bool {
	t, ok := errorType(err)
	return ok && (t == ErrTypeTransport || t == ErrTypeTimeout)
}

// IsTimeoutError checks if an error is a timeout
func IsTimeoutError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeTimeout
}

// IsProtocolError checks if an error is caused by an unusable reply
func IsProtocolError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeProtocol
}

// IsValidationError checks if an error is a rejected request
func IsValidationError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeValidation
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeResolution:
		return strings.Join([]string{
			"Could not resolve the switch hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of a hostname",
			"  • Check your network DNS settings",
		}, "\n")

	case ErrTypeConnection:
		hint := []string{"Could not connect to the switch."}
		switch devErr.Subtype {
		case ConnectionRefused:
			hint = append(hint, "The switch refused the connection.",
				"Troubleshooting:",
				"  • Verify the control port (TESmart default is 5000)",
				"  • Only one controller may be connected at a time on some models",
				"  • Power-cycle the switch if the LAN port stopped answering")
		case ConnectionHostUnreachable, ConnectionNetworkUnreachable:
			hint = append(hint, "The switch is not reachable on the network.",
				"Troubleshooting:",
				"  • Verify the switch IP address (TESmart default is 192.168.1.10)",
				"  • Check that your computer is on the same subnet as the switch")
		default:
			hint = append(hint, "Troubleshooting:",
				"  • Check the network cable on the switch's LAN port",
				"  • Verify the IP address and port")
		}
		return strings.Join(hint, "\n")

	case ErrTypeTimeout:
		return strings.Join([]string{
			"The switch did not respond in time.",
			"Troubleshooting:",
			"  • Check that the switch is powered on",
			"  • Try increasing --timeout",
		}, "\n")

	case ErrTypeTransport:
		return "The connection to the switch failed mid-operation. Please try again."

	case ErrTypeProtocol:
		return strings.Join([]string{
			"The switch sent an unexpected reply.",
			"This may indicate a different firmware revision or another device on that port.",
			"Troubleshooting:",
			"  • Confirm the device at this address is a TESmart-compatible switch",
			"  • Try again; the switch may have closed the connection early",
		}, "\n")

	case ErrTypeValidation:
		return "The requested port cannot be sent to the switch. Check the port number."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeResolution:
		return "Cannot resolve switch hostname"
	case ErrTypeConnection:
		switch devErr.Subtype {
		case ConnectionRefused:
			return "Switch refused connection"
		case ConnectionHostUnreachable:
			return "Switch unreachable - check network connection"
		case ConnectionNetworkUnreachable:
			return "Network unreachable"
		case ConnectionReset:
			return "Switch reset the connection"
		default:
			return "Cannot connect to switch"
		}
	case ErrTypeTimeout:
		return "Switch not responding (timeout)"
	case ErrTypeTransport:
		return "Connection to switch failed"
	case ErrTypeProtocol:
		return "Unexpected reply from switch"
	default:
		return devErr.Message
	}
}
