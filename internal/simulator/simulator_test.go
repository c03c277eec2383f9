package simulator

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/muurk/kvmswitch/internal/protocol"
)

func startSimulator(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	sim := New(cfg)
	if err := sim.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sim.Shutdown(ctx)
	})
	return sim
}

// exchange sends one frame on a fresh connection and returns whatever the
// simulator answers before closing.
func exchange(t *testing.T, addr string, frame []byte) []byte {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write error = %v", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	return reply
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestNew_Defaults(t *testing.T) {
	sim := New(Config{})
	if sim.config.Addr != DefaultAddr {
		t.Errorf("Addr = %s, want %s", sim.config.Addr, DefaultAddr)
	}
	if sim.config.PortCount != DefaultPortCount {
		t.Errorf("PortCount = %d, want %d", sim.config.PortCount, DefaultPortCount)
	}
	if sim.ActivePort() != 1 {
		t.Errorf("ActivePort() = %d, want 1", sim.ActivePort())
	}
	if sim.replyOffset != protocol.DefaultReplyPortOffset {
		t.Errorf("replyOffset = %d, want %d", sim.replyOffset, protocol.DefaultReplyPortOffset)
	}
}

func TestSimulator_ReplyOffset(t *testing.T) {
	tests := []struct {
		name   string
		offset *int
		want   byte
	}{
		{"default", nil, 3},
		{"zero", intPtr(0), 4},
		{"two", intPtr(2), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := startSimulator(t, Config{InitialPort: 4, ReplyOffset: tt.offset})

			reply := exchange(t, sim.Addr(), protocol.QueryFrame())
			if len(reply) != protocol.FrameSize || reply[protocol.OffsetOperand] != tt.want {
				t.Errorf("reply = %s, want raw port %d", protocol.FormatHex(reply), tt.want)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func TestSimulator_Query(t *testing.T) {
	sim := startSimulator(t, Config{InitialPort: 4})

	reply := exchange(t, sim.Addr(), protocol.QueryFrame())
	want := []byte{0xAA, 0xBB, 0x03, 0x11, 0x03, 0xEE}
	if !bytes.Equal(reply, want) {
		t.Errorf("reply = %s, want %s", protocol.FormatHex(reply), protocol.FormatHex(want))
	}
}

func TestSimulator_SelectThenQuery(t *testing.T) {
	sim := startSimulator(t, Config{})

	frame, _ := protocol.SelectFrame(7)
	if reply := exchange(t, sim.Addr(), frame); len(reply) != 0 {
		t.Errorf("select should not be answered, got %s", protocol.FormatHex(reply))
	}
	waitFor(t, func() bool { return sim.ActivePort() == 7 })

	reply := exchange(t, sim.Addr(), protocol.QueryFrame())
	if len(reply) != protocol.FrameSize || reply[protocol.OffsetOperand] != 6 {
		t.Errorf("reply = %s, want raw port 6", protocol.FormatHex(reply))
	}
}

func TestSimulator_SelectOutOfRangeIgnored(t *testing.T) {
	sim := startSimulator(t, Config{PortCount: 4, InitialPort: 2})

	frame, _ := protocol.SelectFrame(9)
	exchange(t, sim.Addr(), frame)
	waitFor(t, func() bool { return len(sim.Frames()) == 1 })

	if sim.ActivePort() != 2 {
		t.Errorf("ActivePort() = %d, want 2 (unchanged)", sim.ActivePort())
	}
}

func TestSimulator_FixedReply(t *testing.T) {
	fixed := []byte{0, 0, 0, 0, 5, 0}
	sim := startSimulator(t, Config{FixedReply: fixed})

	reply := exchange(t, sim.Addr(), protocol.QueryFrame())
	if !bytes.Equal(reply, fixed) {
		t.Errorf("reply = %v, want %v", reply, fixed)
	}
}

func TestSimulator_TruncateReply(t *testing.T) {
	sim := startSimulator(t, Config{TruncateReply: 3})

	reply := exchange(t, sim.Addr(), protocol.QueryFrame())
	if len(reply) != 3 {
		t.Errorf("reply length = %d, want 3", len(reply))
	}
}

func TestSimulator_CapturesFrames(t *testing.T) {
	sim := startSimulator(t, Config{})

	frame, _ := protocol.SelectFrame(4)
	exchange(t, sim.Addr(), frame)
	exchange(t, sim.Addr(), protocol.QueryFrame())
	waitFor(t, func() bool { return len(sim.Frames()) == 2 })

	frames := sim.Frames()
	if got := protocol.FormatHex(frames[0]); got != "AA BB 03 01 04 EE" {
		t.Errorf("frame[0] = %s", got)
	}
	if got := protocol.FormatHex(frames[1]); got != "AA BB 03 10 00 EE" {
		t.Errorf("frame[1] = %s", got)
	}
	if sim.ConnectionCount() != 2 {
		t.Errorf("ConnectionCount() = %d, want 2", sim.ConnectionCount())
	}
}

func TestSimulator_MalformedFrameRecorded(t *testing.T) {
	sim := startSimulator(t, Config{InitialPort: 3})

	reply := exchange(t, sim.Addr(), []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05})
	if len(reply) != 0 {
		t.Errorf("malformed frame should not be answered, got %v", reply)
	}
	waitFor(t, func() bool { return len(sim.Frames()) == 1 })
	if sim.ActivePort() != 3 {
		t.Errorf("ActivePort() = %d, want 3", sim.ActivePort())
	}
}

func TestSimulator_ShutdownClosesSilentConnections(t *testing.T) {
	sim := New(Config{Addr: "127.0.0.1:0", Silent: true})
	if err := sim.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	conn, err := net.Dial("tcp", sim.Addr())
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(protocol.QueryFrame()); err != nil {
		t.Fatalf("write error = %v", err)
	}
	waitFor(t, func() bool { return sim.GetActiveConnections() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sim.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if sim.GetActiveConnections() != 0 {
		t.Errorf("GetActiveConnections() = %d after shutdown", sim.GetActiveConnections())
	}
}

func TestSimulator_HostPort(t *testing.T) {
	sim := startSimulator(t, Config{})
	host, port := sim.HostPort()
	if host != "127.0.0.1" {
		t.Errorf("host = %s, want 127.0.0.1", host)
	}
	if port == 0 {
		t.Error("port should be the ephemeral listen port")
	}
}

func TestSimulator_ServeStopsOnCancel(t *testing.T) {
	sim := New(Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- sim.Serve(ctx) }()

	waitFor(t, func() bool { return sim.listener != nil })
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
