package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		" warn ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Fatalf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGet_ReturnsSingleton(t *testing.T) {
	a := Get(DebugLevel)
	b := Get(ErrorLevel)
	if a != b {
		t.Fatalf("Get returned different instances")
	}
}

func TestNop_Children(t *testing.T) {
	l := Nop().Named("capture").With("session", "s-1")
	l.Infow("discarded", "k", 1)
}

func TestNewZapLogger_JSON(t *testing.T) {
	l := newZapLogger(Options{Level: "debug", Format: "JSON", Service: "bombona-tracker"})
	if !l.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug should be enabled")
	}
	buf, err := newEncoder(FormatJSON).EncodeEntry(zapcore.Entry{Message: "container_moved"}, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if out := buf.String(); !strings.HasPrefix(out, "{") || !strings.Contains(out, `"msg":"container_moved"`) {
		t.Fatalf("not a json line: %s", out)
	}
}
