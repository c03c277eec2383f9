package ui

import (
	"errors"
	"strings"
	"testing"
)

func TestResult_DetailsKeepOrder(t *testing.T) {
	out := NewSuccessResult("Switched", Field{"Switch", "10.0.0.1:5000"}, Field{"Port", "4"}).
		SetWidth(80).
		Render()

	i, j := strings.Index(out, "Switch:"), strings.Index(out, "Port:")
	if i < 0 || j < 0 || i > j {
		t.Errorf("details out of order:\n%s", out)
	}
	if !strings.Contains(out, "SUCCESS") {
		t.Errorf("missing SUCCESS title:\n%s", out)
	}
}

func TestResult_Failure(t *testing.T) {
	out := NewFailureResult("Cannot switch input", errors.New("switch refused connection"),
		[]string{"Verify the control port"}).
		SetWidth(80).
		Render()

	for _, want := range []string{"FAILED", "switch refused connection", "Troubleshooting:", "Verify the control port"} {
		if !strings.Contains(out, want) {
			t.Errorf("failure box missing %q:\n%s", want, out)
		}
	}
}

func TestHeader_Render(t *testing.T) {
	out := NewHeader("KVM Simulator", "kvmswitch simulate", Field{"Listen", "127.0.0.1:5000"}).
		SetWidth(70).
		Render()

	for _, want := range []string{"KVM SIMULATOR", "kvmswitch simulate", "127.0.0.1:5000"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q:\n%s", want, out)
		}
	}
}
