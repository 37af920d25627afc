package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevelAndFormat(t *testing.T) {
	log, err := New("debug", "json")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if log.GetLevel() != zerolog.DebugLevel {
		t.Errorf("level = %s, want debug", log.GetLevel())
	}

	if _, err := New("bogus", "json"); err == nil {
		t.Error("unknown level must be rejected")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Error("unknown format must be rejected")
	}
}
