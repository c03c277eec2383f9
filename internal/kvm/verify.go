package kvm

import (
	"context"
	"fmt"
	"time"
)

// VerificationOptions configures how a selection is confirmed
type VerificationOptions struct {
	// MaxAttempts is the number of queries made before giving up
	// Default: 3
	MaxAttempts int

	// InitialDelay is the wait before the first query.
	// The switch needs a moment to change inputs before it reports the new one.
	// Default: 300ms
	InitialDelay time.Duration

	// RetryDelay is the wait between queries
	// Default: 500ms
	RetryDelay time.Duration
}

// DefaultVerificationOptions returns the defaults used by "select --verify"
func DefaultVerificationOptions() *VerificationOptions {
	return &VerificationOptions{
		MaxAttempts:  3,
		InitialDelay: 300 * time.Millisecond,
		RetryDelay:   500 * time.Millisecond,
	}
}

// VerificationResult contains the outcome of VerifySelection
type VerificationResult struct {
	// Success is true once the switch reported the expected port
	Success bool

	// Attempts is the number of queries made
	Attempts int

	// ActualPort is the last port reported by the switch (0 if none)
	ActualPort int

	// Error is the last error seen, if any
	Error error
}

// VerifySelection queries the switch until it reports expected as the
// active port. The select command itself is never resent; only the query
// is repeated, because the switch takes a moment to change inputs.
func (c *Client) VerifySelection(ctx context.Context, expected int, opts *VerificationOptions) *VerificationResult {
	if opts == nil {
		opts = DefaultVerificationOptions()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	result := &VerificationResult{}

	if err := sleepContext(ctx, opts.InitialDelay); err != nil {
		result.Error = err
		return result
	}

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, opts.RetryDelay); err != nil {
				result.Error = err
				return result
			}
		}
		result.Attempts++

		port, err := c.GetSelectedPortWithContext(ctx)
		if err != nil {
			result.Error = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}

		result.ActualPort = port
		if port == expected {
			result.Success = true
			result.Error = nil
			return result
		}
		result.Error = fmt.Errorf("attempt %d: switch reports port %d, expected %d", attempt+1, port, expected)
	}

	return result
}

// SelectAndVerify selects port and then confirms the switch changed to it
func (c *Client) SelectAndVerify(ctx context.Context, port int, opts *VerificationOptions) (*VerificationResult, error) {
	if err := c.SelectPortWithContext(ctx, port); err != nil {
		return nil, err
	}
	return c.VerifySelection(ctx, port, opts), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
