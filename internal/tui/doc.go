// Package tui implements the interactive KVM port switcher.
//
// The switcher is a full-screen Bubble Tea program showing one button per
// switch input, with the active input highlighted. It follows the Elm
// architecture: Model holds the state, Update applies messages, View renders.
//
// # Keys
//
//   - 1-9 select ports 1-9, 0 selects port 10
//   - F1-F12 select ports 1-12
//   - arrows move the focus, enter selects the focused port
//   - r re-queries the switch, ? toggles the full key list, q quits
//
// # Selection Flow
//
// Key presses are not sent straight to the switch. They go through a
// scheduler.Scheduler, so holding a key or hammering several numbers only
// sends the last choice. The button turns orange while a selection is
// pending and green once the switch has accepted it. The active port is
// queried on start and on refresh, with a spinner while the query runs.
//
// # Usage Example
//
//	client := cfg.NewClient()
//	err := tui.Run(ctx, client, tui.Options{
//	    Ports:    cfg.PortCount,
//	    Label:    cfg.Label,
//	    Debounce: cfg.Debounce,
//	})
package tui
