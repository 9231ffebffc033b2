package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func newCapturedLogger(level Level) (*DefaultLogger, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	d := &DefaultLogger{
		stdout: log.New(&out, "", 0),
		stderr: log.New(&errOut, "", 0),
		level:  level,
		fields: make(Fields),
	}
	return d, &out, &errOut
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name string
		want Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{" info ", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"nonsense", InfoLevel},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.name); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	d, out, errOut := newCapturedLogger(InfoLevel)

	d.Debug("hidden")
	d.Info("shown")
	if strings.Contains(out.String(), "hidden") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(out.String(), "[INFO] shown") {
		t.Errorf("stdout = %q, want info line", out.String())
	}

	d.SetLevel(DebugLevel)
	d.Debug("now visible")
	if !strings.Contains(out.String(), "[DEBUG] now visible") {
		t.Errorf("stdout = %q, want debug line after SetLevel", out.String())
	}
	if errOut.Len() != 0 {
		t.Errorf("stderr = %q, want empty", errOut.String())
	}
}

func TestWarnAndErrorGoToStderr(t *testing.T) {
	d, out, errOut := newCapturedLogger(InfoLevel)

	d.Warn("watch out")
	d.Error(errFake("boom"), "failed")

	if out.Len() != 0 {
		t.Errorf("stdout = %q, want empty", out.String())
	}
	if !strings.Contains(errOut.String(), "[WARN] watch out") {
		t.Errorf("stderr = %q, want warn line", errOut.String())
	}
	if !strings.Contains(errOut.String(), "[ERROR] failed: boom") {
		t.Errorf("stderr = %q, want error line with cause", errOut.String())
	}
}

func TestFieldsRenderSortedAndInherit(t *testing.T) {
	d, out, _ := newCapturedLogger(InfoLevel)

	child := d.WithFields(Fields{"component": "decoder", "b": 2})
	child.Info("ready", Fields{"a": 1})

	line := strings.TrimSpace(out.String())
	if !strings.HasSuffix(line, "a=1 b=2 component=decoder") {
		t.Errorf("line = %q, want sorted fields suffix", line)
	}

	// The child must not leak fields back into the parent
	out.Reset()
	d.Info("plain")
	if strings.Contains(out.String(), "component") {
		t.Errorf("parent line = %q, inherited child fields", out.String())
	}
}

func TestCallFieldsOverridePreset(t *testing.T) {
	d, out, _ := newCapturedLogger(InfoLevel)

	child := d.WithFields(Fields{"stage": "probe"})
	child.Info("step", Fields{"stage": "decode"})

	if !strings.Contains(out.String(), "stage=decode") {
		t.Errorf("line = %q, want call-site value to win", out.String())
	}
}

type errFake string

func (e errFake) Error() string { return string(e) }
