package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/kvmswitch/internal/logging"
	"github.com/muurk/kvmswitch/internal/protocol"
)

const (
	// DefaultAddr matches the control port of a real switch, on loopback
	DefaultAddr = "127.0.0.1:5000"

	// DefaultReadTimeout bounds how long a connection may take to send its command
	DefaultReadTimeout = 5 * time.Second

	// DefaultPortCount is the number of inputs the simulated switch has
	DefaultPortCount = 16
)

// Config holds the simulator configuration
type Config struct {
	// Addr is the listen address. Use "127.0.0.1:0" for an ephemeral port.
	Addr string

	// PortCount is the number of inputs. Select commands outside 1..PortCount
	// are ignored, like on the real device.
	PortCount int

	// InitialPort is the active input at startup (1-based, default 1)
	InitialPort int

	// ReplyOffset is subtracted from the active port to form the reply byte.
	// nil means protocol.DefaultReplyPortOffset; 0 is a valid offset.
	ReplyOffset *int

	// FixedReply, when set, is sent verbatim in reply to every query
	FixedReply []byte

	// TruncateReply, when > 0, sends only that many reply bytes and then
	// closes the connection
	TruncateReply int

	// Silent makes the simulator never answer queries
	Silent bool

	// ReadTimeout bounds how long a connection may take to send its command
	ReadTimeout time.Duration
}

// Simulator is an in-process TESmart-compatible KVM switch. It accepts one
// command per connection, exactly like the hardware.
type Simulator struct {
	config      Config
	listener    net.Listener
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]net.Conn
	activePort  int
	replyOffset int
	frames      [][]byte
	accepted    int
}

// New creates a new Simulator. Zero config fields take their defaults.
func New(config Config) *Simulator {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.PortCount <= 0 {
		config.PortCount = DefaultPortCount
	}
	if config.InitialPort <= 0 {
		config.InitialPort = 1
	}
	replyOffset := protocol.DefaultReplyPortOffset
	if config.ReplyOffset != nil {
		replyOffset = *config.ReplyOffset
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}

	return &Simulator{
		config:      config,
		activeConns: make(map[string]net.Conn),
		activePort:  config.InitialPort,
		replyOffset: replyOffset,
	}
}

// Start opens the listener and begins accepting connections in the background
func (s *Simulator) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener

	logging.Info("KVM simulator listening",
		zap.String("addr", listener.Addr().String()),
		zap.Int("ports", s.config.PortCount),
		zap.Int("active_port", s.ActivePort()),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptConnections()
	}()
	return nil
}

// Serve starts the simulator and blocks until ctx is done, then shuts down
func (s *Simulator) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Addr returns the address the simulator is listening on
func (s *Simulator) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// HostPort returns the listen address split for kvm.NewClient
func (s *Simulator) HostPort() (string, int) {
	host, portStr, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return s.Addr(), 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// acceptConnections accepts and handles incoming connections
func (s *Simulator) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection serves one command
func (s *Simulator) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()

	s.mu.Lock()
	s.activeConns[remoteAddr] = conn
	s.accepted++
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	logging.LogConnection(remoteAddr, "connection_accepted")

	_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	buf := make([]byte, protocol.FrameSize)
	n, err := io.ReadFull(conn, buf)
	if err != nil {
		if n > 0 {
			logging.Warn("Incomplete command frame",
				zap.String("remote_addr", remoteAddr),
				zap.Int("bytes", n),
				zap.Error(err),
			)
		}
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	logging.LogFrame(remoteAddr, "received", buf)

	s.mu.Lock()
	s.frames = append(s.frames, buf)
	s.mu.Unlock()

	cmd, err := protocol.DecodeCommand(buf)
	if err != nil {
		logging.Warn("Malformed command frame",
			zap.String("remote_addr", remoteAddr),
			zap.String("frame", protocol.FormatHex(buf)),
			zap.Error(err),
		)
		return
	}

	switch {
	case cmd.IsSelect():
		s.handleSelect(remoteAddr, int(cmd.Operand))
	case cmd.IsQuery():
		s.handleQuery(conn, remoteAddr)
	default:
		logging.Warn("Unsupported opcode",
			zap.String("remote_addr", remoteAddr),
			zap.String("opcode", protocol.OpcodeName(cmd.Opcode)),
		)
	}
}

func (s *Simulator) handleSelect(remoteAddr string, port int) {
	if port < 1 || port > s.config.PortCount {
		logging.Warn("Select ignored, port out of range",
			zap.String("remote_addr", remoteAddr),
			zap.Int("port", port),
			zap.Int("port_count", s.config.PortCount),
		)
		return
	}

	s.mu.Lock()
	s.activePort = port
	s.mu.Unlock()

	logging.Info("Input selected",
		zap.String("remote_addr", remoteAddr),
		zap.Int("port", port),
	)
}

func (s *Simulator) handleQuery(conn net.Conn, remoteAddr string) {
	if s.config.Silent {
		// Hold the connection open until the controller gives up
		_, _ = io.Copy(io.Discard, conn)
		return
	}

	reply := s.reply()
	if s.config.TruncateReply > 0 && s.config.TruncateReply < len(reply) {
		reply = reply[:s.config.TruncateReply]
	}

	if _, err := conn.Write(reply); err != nil {
		logging.Error("Failed to send reply",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}
	logging.LogFrame(remoteAddr, "sent", reply)
}

// reply builds the answer to a query for the current state
func (s *Simulator) reply() []byte {
	if s.config.FixedReply != nil {
		out := make([]byte, len(s.config.FixedReply))
		copy(out, s.config.FixedReply)
		return out
	}
	raw := s.ActivePort() - s.replyOffset
	return protocol.EncodeResponse(byte(raw))
}

// ActivePort returns the currently selected input (1-based)
func (s *Simulator) ActivePort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePort
}

// SetActivePort changes the selected input as if a front-panel button was pressed
func (s *Simulator) SetActivePort(port int) {
	s.mu.Lock()
	s.activePort = port
	s.mu.Unlock()
}

// Frames returns a copy of every command frame received, in arrival order
func (s *Simulator) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(s.frames))
	for i, f := range s.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// ConnectionCount returns the number of connections accepted so far
func (s *Simulator) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// GetActiveConnections returns the number of open connections
func (s *Simulator) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// Shutdown stops accepting connections, closes open ones and waits for
// handlers to finish or ctx to expire.
func (s *Simulator) Shutdown(ctx context.Context) error {
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}

	s.mu.Lock()
	for _, conn := range s.activeConns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("KVM simulator stopped")
		return nil
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		return ctx.Err()
	}
}
