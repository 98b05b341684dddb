package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		json  bool
		want  zapcore.Level
	}{
		{"debug", false, zapcore.DebugLevel},
		{"info", true, zapcore.InfoLevel},
		{"WARN", false, zapcore.WarnLevel},
		{"", true, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		log, err := New(tt.level, tt.json)
		if err != nil {
			t.Fatalf("New(%q): %v", tt.level, err)
		}
		if got := log.Level(); got != tt.want {
			t.Errorf("New(%q) level = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New("loud", false); err == nil {
		t.Error("expected error for unknown level")
	}
}
