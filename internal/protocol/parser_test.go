package protocol

import (
	"errors"
	"testing"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		strict   bool
		wantErr  error
		wantPort int
	}{
		{
			name:     "device reply for port 1",
			data:     []byte{0xAA, 0xBB, 0x03, 0x11, 0x00, 0xEE},
			wantPort: 1,
		},
		{
			name:     "device reply for port 4",
			data:     []byte{0xAA, 0xBB, 0x03, 0x11, 0x03, 0xEE},
			strict:   true,
			wantPort: 4,
		},
		{
			name:     "unframed reply accepted in lenient mode",
			data:     []byte{0, 0, 0, 0, 5, 0},
			wantPort: 6,
		},
		{
			name:    "unframed reply rejected in strict mode",
			data:    []byte{0, 0, 0, 0, 5, 0},
			strict:  true,
			wantErr: ErrBadMagic,
		},
		{
			name:    "wrong length byte in strict mode",
			data:    []byte{0xAA, 0xBB, 0x04, 0x11, 0x05, 0xEE},
			strict:  true,
			wantErr: ErrBadLength,
		},
		{
			name:    "wrong terminator in strict mode",
			data:    []byte{0xAA, 0xBB, 0x03, 0x11, 0x05, 0xEF},
			strict:  true,
			wantErr: ErrBadTrailer,
		},
		{
			name:    "truncated reply",
			data:    []byte{0xAA, 0xBB, 0x03},
			wantErr: ErrFrameSize,
		},
		{
			name:    "empty reply",
			data:    nil,
			wantErr: ErrFrameSize,
		},
		{
			name:    "oversized reply",
			data:    []byte{0xAA, 0xBB, 0x03, 0x11, 0x05, 0xEE, 0x00},
			wantErr: ErrFrameSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseResponse(tt.data, tt.strict)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseResponse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseResponse() error = %v", err)
			}
			if got := r.ActivePort(DefaultReplyPortOffset); got != tt.wantPort {
				t.Errorf("ActivePort() = %d, want %d", got, tt.wantPort)
			}
		})
	}
}

func TestResponseFrame_ActivePortOffset(t *testing.T) {
	r, err := ParseResponse([]byte{0xAA, 0xBB, 0x03, 0x11, 0x07, 0xEE}, true)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if r.RawPort() != 7 {
		t.Errorf("RawPort() = %d, want 7", r.RawPort())
	}
	if got := r.ActivePort(0); got != 7 {
		t.Errorf("ActivePort(0) = %d, want 7", got)
	}
	if got := r.ActivePort(1); got != 8 {
		t.Errorf("ActivePort(1) = %d, want 8", got)
	}
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    CommandFrame
		wantErr error
	}{
		{
			name: "select",
			data: []byte{0xAA, 0xBB, 0x03, 0x01, 0x04, 0xEE},
			want: CommandFrame{Opcode: OpcodeSelect, Operand: 4},
		},
		{
			name: "query",
			data: []byte{0xAA, 0xBB, 0x03, 0x10, 0x00, 0xEE},
			want: CommandFrame{Opcode: OpcodeQuery},
		},
		{
			name:    "bad magic",
			data:    []byte{0xAB, 0xBB, 0x03, 0x01, 0x04, 0xEE},
			wantErr: ErrBadMagic,
		},
		{
			name:    "bad terminator",
			data:    []byte{0xAA, 0xBB, 0x03, 0x01, 0x04, 0x00},
			wantErr: ErrBadTrailer,
		},
		{
			name:    "short",
			data:    []byte{0xAA, 0xBB},
			wantErr: ErrFrameSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeCommand() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeCommand() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeCommand() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeCommand_RoundTrip(t *testing.T) {
	frame, err := SelectFrame(12)
	if err != nil {
		t.Fatalf("SelectFrame() error = %v", err)
	}
	cmd, err := DecodeCommand(frame)
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	if !cmd.IsSelect() || cmd.Operand != 12 {
		t.Errorf("DecodeCommand() = %v, want select port 12", cmd)
	}
}
