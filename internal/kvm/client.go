package kvm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/muurk/kvmswitch/internal/protocol"
)

const (
	// DefaultHost is the factory IP address of TESmart KVM switches
	DefaultHost = "192.168.1.10"

	// DefaultPort is the factory TCP control port of TESmart KVM switches
	DefaultPort = 5000

	// DefaultTimeout bounds connecting and each read/write on the connection
	DefaultTimeout = 5 * time.Second
)

// Operation names used in errors
const (
	OpSelect = "select"
	OpQuery  = "query"
)

// Dialer opens the TCP connection for one operation. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DeviceEndpoint is the address of the switch's control port
type DeviceEndpoint struct {
	Host string
	Port int
}

// Address returns the endpoint as host:port
func (e DeviceEndpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String returns the endpoint as host:port
func (e DeviceEndpoint) String() string {
	return e.Address()
}

// Client talks to one KVM switch.
//
// Every operation opens its own connection, writes one command frame,
// optionally reads one reply frame and closes the connection. The client
// keeps no state between calls, so it is safe for concurrent use. Calls are
// never retried and the client never logs.
type Client struct {
	endpoint      DeviceEndpoint
	timeout       time.Duration
	replyOffset   int
	strictFraming bool
	dialer        Dialer
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the deadline for connecting and for each read/write.
// A zero or negative value disables the deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithReplyOffset overrides the value added to the raw reply byte to get the
// user-facing port number (default protocol.DefaultReplyPortOffset).
func WithReplyOffset(offset int) Option {
	return func(c *Client) {
		c.replyOffset = offset
	}
}

// WithStrictFraming makes GetSelectedPort reject replies whose magic bytes,
// length byte or terminator do not match the command framing.
func WithStrictFraming(strict bool) Option {
	return func(c *Client) {
		c.strictFraming = strict
	}
}

// WithDialer replaces the dialer used to open connections
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// NewClient creates a client for the switch at host:port.
// host: hostname or IP literal (empty = DefaultHost)
// port: TCP control port (0 = DefaultPort)
func NewClient(host string, port int, opts ...Option) *Client {
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}

	c := &Client{
		endpoint:    DeviceEndpoint{Host: host, Port: port},
		timeout:     DefaultTimeout,
		replyOffset: protocol.DefaultReplyPortOffset,
		dialer:      &net.Dialer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefaultClient creates a client for a switch with factory settings
func NewDefaultClient(opts ...Option) *Client {
	return NewClient(DefaultHost, DefaultPort, opts...)
}

// Endpoint returns the switch address the client was created with
func (c *Client) Endpoint() DeviceEndpoint {
	return c.endpoint
}

// Address returns the switch address as host:port
func (c *Client) Address() string {
	return c.endpoint.Address()
}

// Timeout returns the per-operation deadline
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// ReplyOffset returns the offset applied to raw query replies
func (c *Client) ReplyOffset() int {
	return c.replyOffset
}

// SelectPort switches the active input to port (1-based).
// The switch does not acknowledge select commands, so success means the
// frame was written.
func (c *Client) SelectPort(port int) error {
	return c.SelectPortWithContext(context.Background(), port)
}

// SelectPortWithContext is SelectPort with a custom context. Cancelling the
// context aborts connecting or writing; once the frame has been written the
// command is delivered and cannot be withdrawn.
func (c *Client) SelectPortWithContext(ctx context.Context, port int) error {
	frame, err := protocol.SelectFrame(port)
	if err != nil {
		return NewValidationError(OpSelect, fmt.Sprintf("invalid port %d", port), err)
	}

	conn, err := c.dial(ctx, OpSelect)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	return c.write(ctx, conn, OpSelect, frame)
}

// GetSelectedPort queries the switch for the active input and returns it
// 1-based.
func (c *Client) GetSelectedPort() (int, error) {
	return c.GetSelectedPortWithContext(context.Background())
}

// GetSelectedPortWithContext is GetSelectedPort with a custom context.
// Cancelling the context abandons the wait for the reply.
func (c *Client) GetSelectedPortWithContext(ctx context.Context) (int, error) {
	conn, err := c.dial(ctx, OpQuery)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	if err := c.write(ctx, conn, OpQuery, protocol.QueryFrame()); err != nil {
		return 0, err
	}

	buf, err := c.readReply(ctx, conn)
	if err != nil {
		return 0, err
	}

	reply, err := protocol.ParseResponse(buf, c.strictFraming)
	if err != nil {
		return 0, NewProtocolError(OpQuery, c.Address(), "malformed reply "+protocol.FormatHex(buf), err)
	}

	return reply.ActivePort(c.replyOffset), nil
}

// dial opens the connection for one operation
func (c *Client) dial(ctx context.Context, op string) (net.Conn, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.Address())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !isDeadline(ctxErr) {
			return nil, &DeviceError{
				Type:    ErrTypeConnection,
				Op:      op,
				Message: "connect cancelled",
				Address: c.Address(),
				Err:     ctxErr,
			}
		}
		return nil, newDialError(err, op, c.Address())
	}
	return conn, nil
}

// write sends the whole frame
func (c *Client) write(ctx context.Context, conn net.Conn, op string, frame []byte) error {
	c.setDeadline(ctx, conn)
	stop := interruptOnCancel(ctx, conn)
	defer stop()

	if _, err := conn.Write(frame); err != nil {
		return c.contextError(ctx, op, newWriteError(err, op, c.Address()))
	}
	return nil
}

// readReply reads exactly one reply frame. A partially filled buffer is
// never returned.
func (c *Client) readReply(ctx context.Context, conn net.Conn) ([]byte, error) {
	c.setDeadline(ctx, conn)
	stop := interruptOnCancel(ctx, conn)
	defer stop()

	buf := make([]byte, protocol.FrameSize)
	n, err := io.ReadFull(conn, buf)
	if err != nil {
		return nil, c.contextError(ctx, OpQuery, newReadError(err, OpQuery, c.Address(), n))
	}
	return buf, nil
}

// setDeadline applies the client timeout, or the context deadline if sooner
func (c *Client) setDeadline(ctx context.Context, conn net.Conn) {
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
}

// contextError reports cancellation instead of the I/O error it caused
func (c *Client) contextError(ctx context.Context, op string, ioErr *DeviceError) error {
	ctxErr := ctx.Err()
	if ctxErr == nil {
		return ioErr
	}
	if isDeadline(ctxErr) {
		return &DeviceError{
			Type:      ErrTypeTimeout,
			Op:        op,
			Message:   "operation timed out",
			Address:   c.Address(),
			BytesRead: ioErr.BytesRead,
			Err:       ctxErr,
		}
	}
	return &DeviceError{
		Type:      ErrTypeTransport,
		Op:        op,
		Message:   "operation cancelled",
		Address:   c.Address(),
		BytesRead: ioErr.BytesRead,
		Err:       ctxErr,
	}
}

// interruptOnCancel unblocks pending I/O when ctx is cancelled.
// The returned function must be called once the I/O is done.
func interruptOnCancel(ctx context.Context, conn net.Conn) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Unix(1, 0))
		case <-done:
		}
	}()
	return func() { close(done) }
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
