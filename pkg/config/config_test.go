package config_test

import (
	"testing"

	"github.com/go-mdb/mdb/pkg/config"
)

func TestClampedDefaultsWhenUnset(t *testing.T) {
	c := &config.Config{}
	if got := c.Clamped(); got != 4 {
		t.Fatalf("Clamped() = %d, want 4", got)
	}
}

func TestClampedCapsAtFour(t *testing.T) {
	c := &config.Config{MaxHardwareStopPoints: 99}
	if got := c.Clamped(); got != 4 {
		t.Fatalf("Clamped() = %d, want 4", got)
	}
}

func TestClampedPassesThroughValidValue(t *testing.T) {
	c := &config.Config{MaxHardwareStopPoints: 2}
	if got := c.Clamped(); got != 2 {
		t.Fatalf("Clamped() = %d, want 2", got)
	}
}

func TestConfigFilePathJoinsDotDir(t *testing.T) {
	p, err := config.ConfigFilePath("config.yml")
	if err != nil {
		t.Fatal(err)
	}
	if p == "" {
		t.Fatal("expected a non-empty path")
	}
}
