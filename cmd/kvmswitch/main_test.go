package main

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/muurk/kvmswitch/internal/config"
	"github.com/muurk/kvmswitch/internal/simulator"
)

// isolate keeps the user's config file and environment out of the test
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{"KVMSWITCH_CONFIG", "KVMSWITCH_HOST", "KVMSWITCH_PORT", "KVMSWITCH_LOG_LEVEL"} {
		t.Setenv(name, "")
	}
}

func startSwitch(t *testing.T, active int) (*simulator.Simulator, []string) {
	t.Helper()
	sim := simulator.New(simulator.Config{Addr: "127.0.0.1:0", InitialPort: active})
	if err := sim.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sim.Shutdown(ctx)
	})
	host, port := sim.HostPort()
	return sim, []string{"--host", host, "--port", strconv.Itoa(port), "--timeout", "2s"}
}

func execute(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func waitActive(t *testing.T, sim *simulator.Simulator, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sim.ActivePort() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ActivePort() = %d, want %d", sim.ActivePort(), want)
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"empty", nil, nil},
		{"help", []string{"-help"}, []string{"--help"}},
		{"help upper case", []string{"-HELP"}, []string{"--help"}},
		{"question mark", []string{"-?"}, []string{"--help"}},
		{"port", []string{"4"}, []string{"4"}},
		{"negative port", []string{"-3"}, []string{"--", "-3"}},
		{"flag", []string{"-v"}, []string{"-v"}},
		{"several", []string{"-help", "4"}, []string{"--", "-help", "4"}},
		{"several numbers", []string{"-3", "4"}, []string{"--", "-3", "4"}},
		{"long flag", []string{"--host", "h", "4"}, []string{"--host", "h", "4"}},
		{"subcommand", []string{"decode", "-x", "AA"}, []string{"decode", "-x", "AA"}},
	}

	isCommand := func(name string) bool { return name == "decode" }
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeArgs(tt.args, isCommand)
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("normalizeArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestLogOptions(t *testing.T) {
	tests := []struct {
		name          string
		fileLogOnly   bool
		level         string
		defaultLevel  string
		wantLevel     string
		wantNoConsole bool
	}{
		{"configured level", false, "debug", "info", "debug", false},
		{"default level", false, "", "info", "info", false},
		{"terminal ui", true, "debug", "", "debug", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Log.Level = tt.level
			cfg.Log.File = "/tmp/kvmswitch.log"

			a := &app{fileLogOnly: tt.fileLogOnly}
			got := a.logOptions(cfg, tt.defaultLevel)
			if got.Level != tt.wantLevel || got.NoConsole != tt.wantNoConsole || got.File != cfg.Log.File {
				t.Errorf("logOptions() = %+v, want level %q, NoConsole %v", got, tt.wantLevel, tt.wantNoConsole)
			}
		})
	}
}

func TestRun_Usage(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
	}{
		{"help", []string{"-help"}},
		{"question mark", []string{"-?"}},
		{"long help", []string{"--help"}},
		{"too many arguments", []string{"1", "2"}},
		{"help with extra argument", []string{"-help", "x"}},
		{"negative number with extra argument", []string{"-3", "4"}},
		{"question mark after port", []string{"4", "-?"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := execute(t, tt.args...)
			if code != 0 {
				t.Errorf("exit code = %d, want 0 (stderr: %s)", code, stderr)
			}
			if !strings.Contains(stdout, "Usage:") {
				t.Errorf("stdout should contain usage, got:\n%s", stdout)
			}
		})
	}
}

func TestRun_ShowsSelectedPort(t *testing.T) {
	isolate(t)
	_, flags := startSwitch(t, 7)

	code, stdout, stderr := execute(t, flags...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "KVMSwitch ") {
		t.Errorf("stdout should start with the header line, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Currently selected port: 7\n") {
		t.Errorf("stdout = %q, want the selected port", stdout)
	}
}

func TestRun_SelectsPort(t *testing.T) {
	isolate(t)
	sim, flags := startSwitch(t, 1)

	code, stdout, stderr := execute(t, append(flags, "4")...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want nothing", stdout)
	}
	waitActive(t, sim, 4)
}

func TestRun_FatalErrors(t *testing.T) {
	isolate(t)
	_, flags := startSwitch(t, 1)

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	closedPort := strconv.Itoa(closed.Addr().(*net.TCPAddr).Port)
	closed.Close()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"not a number", append(flags, "abc"), "invalid port number"},
		{"port zero", append(flags, "0"), "port"},
		{"negative port", []string{"-3"}, "invalid port -3"},
		{"connection refused", []string{"--host", "127.0.0.1", "--port", closedPort, "--timeout", "1s"}, "connect"},
		{"missing config file", []string{"--config", "/nonexistent/kvmswitch.yaml"}, "config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := execute(t, tt.args...)
			if code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			if !strings.HasPrefix(stderr, "Fatal error: ") {
				t.Errorf("stderr = %q, want Fatal error prefix", stderr)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr = %q, want it to mention %q", stderr, tt.want)
			}
		})
	}
}

func TestGetCommand(t *testing.T) {
	isolate(t)
	_, flags := startSwitch(t, 12)

	code, stdout, stderr := execute(t, append([]string{"get"}, flags...)...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if stdout != "12\n" {
		t.Errorf("stdout = %q, want %q", stdout, "12\n")
	}
}

func TestGetCommand_Pretty(t *testing.T) {
	isolate(t)
	_, flags := startSwitch(t, 3)

	code, stdout, stderr := execute(t, append([]string{"get", "--pretty"}, flags...)...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Port 3 is selected") {
		t.Errorf("stdout should contain the result box, got:\n%s", stdout)
	}
}

func TestSelectCommand(t *testing.T) {
	isolate(t)
	sim, flags := startSwitch(t, 1)

	code, stdout, stderr := execute(t, append([]string{"select", "9"}, flags...)...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if stdout != "Selected Port 9\n" {
		t.Errorf("stdout = %q", stdout)
	}
	waitActive(t, sim, 9)
}

func TestSelectCommand_Verify(t *testing.T) {
	isolate(t)
	sim, flags := startSwitch(t, 1)

	code, stdout, stderr := execute(t, append([]string{"select", "5", "--verify"}, flags...)...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Switched to port 5") {
		t.Errorf("stdout should report success, got:\n%s", stdout)
	}
	if sim.ActivePort() != 5 {
		t.Errorf("ActivePort() = %d, want 5", sim.ActivePort())
	}
}

func TestSelectCommand_VerifyMismatch(t *testing.T) {
	isolate(t)
	// Port 20 is outside the simulated switch, so the input never changes
	_, flags := startSwitch(t, 2)

	code, stdout, stderr := execute(t, append([]string{"select", "20", "--verify"}, flags...)...)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stdout, "did not change input") {
		t.Errorf("stdout should contain a warning, got:\n%s", stdout)
	}
	if !strings.Contains(stderr, "switch reports port 2") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestSelectCommand_RequiresPort(t *testing.T) {
	isolate(t)

	code, _, stderr := execute(t, "select")
	if code != 1 || !strings.HasPrefix(stderr, "Fatal error: ") {
		t.Errorf("exit code = %d, stderr = %q", code, stderr)
	}
}

func TestConfigCommand(t *testing.T) {
	isolate(t)

	code, stdout, stderr := execute(t, "config", "--host", "10.1.2.3", "--timeout", "750ms")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	for _, want := range []string{"host: 10.1.2.3", "port: 5000", "timeout: 750ms"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestConfigCommand_EnvironmentOverride(t *testing.T) {
	isolate(t)
	t.Setenv("KVMSWITCH_HOST", "kvm.example.net")

	code, stdout, _ := execute(t, "config")
	if code != 0 || !strings.Contains(stdout, "host: kvm.example.net") {
		t.Errorf("exit code = %d, stdout:\n%s", code, stdout)
	}
}

func TestDecodeCommand(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"select", []string{"AA", "BB", "03", "01", "04", "EE"}, []string{"type: select", "port: 4"}},
		{"query", []string{"aabb031000ee"}, []string{"type: query"}},
		{"reply", []string{"AA BB 03 11 03 EE"}, []string{"type: query-reply", "port: 4 (raw 3)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := execute(t, append([]string{"decode"}, tt.args...)...)
			if code != 0 {
				t.Fatalf("exit code = %d, stderr: %s", code, stderr)
			}
			for _, want := range tt.want {
				if !strings.Contains(stdout, want) {
					t.Errorf("stdout missing %q:\n%s", want, stdout)
				}
			}
		})
	}
}

func TestDecodeCommand_Invalid(t *testing.T) {
	isolate(t)

	for _, arg := range []string{"zz", "AABB03", "AABB030104FF"} {
		code, _, stderr := execute(t, "decode", arg)
		if code != 1 || !strings.HasPrefix(stderr, "Fatal error: ") {
			t.Errorf("decode %s: exit code = %d, stderr = %q", arg, code, stderr)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	code, stdout, _ := execute(t, "version")
	if code != 0 || !strings.HasPrefix(stdout, "kvmswitch ") {
		t.Errorf("exit code = %d, stdout = %q", code, stdout)
	}
}
