package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		production bool
		level      string
		wantLevel  zapcore.Level
		wantErr    error
	}{
		{name: "production default", production: true, wantLevel: zapcore.InfoLevel},
		{name: "development default", wantLevel: zapcore.DebugLevel},
		{name: "explicit level", production: true, level: "warn", wantLevel: zapcore.WarnLevel},
		{name: "upper case level", level: "ERROR", wantLevel: zapcore.ErrorLevel},
		{name: "invalid level", level: "loud", wantErr: ErrInvalidLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := New(tt.production, tt.level)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got := logger.Level(); got != tt.wantLevel {
				t.Errorf("Level() = %v, want %v", got, tt.wantLevel)
			}
		})
	}
}

func TestMust_FallsBack(t *testing.T) {
	t.Parallel()

	logger := Must(false, "loud")
	if logger == nil {
		t.Fatal("Must() returned nil")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("fallback logger should log at info")
	}
}
