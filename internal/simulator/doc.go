// Package simulator provides an in-process TESmart-compatible KVM switch.
//
// The simulator listens on TCP and behaves like the device's LAN control
// port: each connection carries one 6-byte command. Select commands change
// the active input and get no answer; query commands are answered with
//
//	AA BB 03 11 <active-1> EE
//
// It records every command frame it receives, which makes it the test double
// for package kvm, and it backs the "kvmswitch simulate" command for trying
// the tool without hardware.
//
// # Fault Injection
//
// Config.FixedReply, Config.TruncateReply and Config.Silent reproduce
// misbehaving devices: arbitrary reply bytes, a peer that closes mid-reply,
// and a peer that never answers.
//
// # Usage Example
//
//	sim := simulator.New(simulator.Config{Addr: "127.0.0.1:0"})
//	if err := sim.Start(); err != nil {
//	    return err
//	}
//	defer sim.Shutdown(context.Background())
//
//	host, port := sim.HostPort()
//	client := kvm.NewClient(host, port)
package simulator
