// log/log_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNilLogger(t *testing.T) {
	var l *Logger
	// None of these should crash.
	l.Debug("debug")
	l.Debugf("debug %d", 1)
	l.Info("info")
	l.Infof("info %d", 1)
	if l.With("a", 1) != nil {
		t.Errorf("expected nil logger from With on nil receiver")
	}
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")

	l.Info("quiet")
	l.Debugf("quiet %d", 2)
	if buf.Len() != 0 {
		t.Fatalf("info/debug messages logged at warn level: %s", buf.String())
	}

	l.Warn("loud", "key", "value")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log record is not JSON: %v", err)
	}
	if rec["msg"] != "loud" || rec["key"] != "value" {
		t.Errorf("unexpected record %v", rec)
	}
	if _, ok := rec["callstack"]; !ok {
		t.Errorf("record is missing callstack")
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With("airport", "KSFO")
	l.Infof("parking %s released", "A1")
	if !strings.Contains(buf.String(), `"airport":"KSFO"`) {
		t.Errorf("derived logger lost its attributes: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "parking A1 released") {
		t.Errorf("formatted message missing: %s", buf.String())
	}
}

func TestCallstack(t *testing.T) {
	fr := Callstack(nil)
	if len(fr) == 0 {
		t.Fatalf("empty callstack")
	}
	for _, f := range fr {
		if f.File == "" || f.Line == 0 {
			t.Errorf("incomplete frame %v", f)
		}
	}
}
