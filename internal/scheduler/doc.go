// Package scheduler debounces KVM port selections.
//
// Interactive front ends can produce a burst of selections (a held key, a
// double click). The switch handles one command per connection and needs a
// moment to change inputs, so the burst is collapsed: only the last port
// requested within the delay is sent.
//
//	sched := scheduler.New(func(ctx context.Context, port int) error {
//	    return client.SelectPortWithContext(ctx, port)
//	}, scheduler.DefaultDelay,
//	    scheduler.WithRateLimit(5, 1),
//	    scheduler.WithResultHandler(func(port int, err error) { ... }),
//	)
//	defer sched.Stop()
//
//	sched.Schedule(3)
//	sched.Schedule(4) // only port 4 is sent
package scheduler
