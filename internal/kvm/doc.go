// Package kvm provides a TCP client for TESmart-compatible KVM switches.
//
// The switch exposes a LAN control port (factory default 192.168.1.10:5000)
// that accepts one 6-byte command per connection. This package implements the
// two commands needed to drive it: selecting an input and querying which
// input is active.
//
// # Usage Example
//
//	client := kvm.NewClient("192.168.1.10", 5000, kvm.WithTimeout(2*time.Second))
//
//	// Switch to input 4
//	if err := client.SelectPort(4); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Ask which input is active
//	port, err := client.GetSelectedPort()
//	if err != nil {
//	    fmt.Println(kvm.GetTroubleshootingHint(err))
//	}
//
// # Connection Model
//
// Every operation dials, sends one frame, optionally reads one reply and
// closes. Nothing is pooled or cached, so a Client is safe for concurrent
// use; concurrent operations simply open concurrent connections. Operations
// are never retried.
//
// # Error Handling
//
// Failures are returned as *DeviceError and can be told apart with:
//   - IsResolutionError: the hostname did not resolve
//   - IsConnectionError: refused, unreachable or reset
//   - IsTransportError: a write or read failed (IsTimeoutError for deadlines)
//   - IsProtocolError: the reply was short or badly framed
//   - IsValidationError: the port cannot be encoded
//
// GetShortErrorMessage and GetTroubleshootingHint turn an error into text for
// the user.
//
// # Verification
//
// Select commands are not acknowledged by the switch. SelectAndVerify sends
// the command and then queries until the switch reports the new input.
package kvm
