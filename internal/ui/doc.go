// Package ui provides styled terminal output for the kvmswitch CLI.
//
// The components follow a "render once and print" pattern: nothing here reads
// input. The interactive port switcher lives in package tui and reuses this
// package's colour palette.
//
//   - Header: banner for long-running commands (kvmswitch simulate)
//   - Result: success, failure and warning boxes (select --verify, get --pretty)
//
// Plain one-line output (for example "Currently selected port: 4") is printed
// by the commands themselves so it stays easy to script against; these boxes
// are only used where the user asked for them.
//
// Example:
//
//	fmt.Println(ui.RenderFailure("Cannot switch input", err,
//	    strings.Split(kvm.GetTroubleshootingHint(err), "\n")))
//
// # Logging Integration
//
// zap logging is silent unless KVMSWITCH_LOG_LEVEL or --log-level is set, so
// the styled output is not interleaved with log lines.
package ui
