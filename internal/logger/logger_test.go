// internal/logger/logger_test.go
package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input  string
		want   zapcore.Level
		wantOK bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{"info", zapcore.InfoLevel, true},
		{"warn", zapcore.WarnLevel, true},
		{"error", zapcore.ErrorLevel, true},
		{"WARN", zapcore.WarnLevel, true},
		{" info ", zapcore.InfoLevel, true},
		{"verbose", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, ok := ParseLevel(tc.input)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tc.input, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestL_NotNil(t *testing.T) {
	if L() == nil {
		t.Fatal("global logger is nil")
	}
}
