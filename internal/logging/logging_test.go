package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		dev   bool
		want  zapcore.Level
	}{
		{"debug", true, zapcore.DebugLevel},
		{"info", false, zapcore.InfoLevel},
		{"warn", false, zapcore.WarnLevel},
		{"error", true, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		l, err := New(tt.level, tt.dev)
		if err != nil {
			t.Fatalf("New(%q): unexpected error: %v", tt.level, err)
		}
		if !l.Core().Enabled(tt.want) {
			t.Errorf("New(%q): level %v should be enabled", tt.level, tt.want)
		}
		if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
			t.Errorf("New(%q): level %v should be disabled", tt.level, tt.want-1)
		}
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("loud", false); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l, _ := New("info", false)
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger")
	}
}
