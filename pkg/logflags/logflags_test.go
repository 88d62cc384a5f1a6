package logflags_test

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/go-mdb/mdb/pkg/logflags"
)

func TestSetupEnablesOnlyNamedLayers(t *testing.T) {
	logflags.Setup([]string{"dwarf"})
	if !logflags.DWARF() {
		t.Fatal("expected DWARF layer to be enabled")
	}
	if logflags.ELF() {
		t.Fatal("ELF layer should not have been enabled")
	}
	if logflags.DWARFLogger().Logger.Level != logrus.DebugLevel {
		t.Fatalf("expected DWARF logger to be at DebugLevel once enabled")
	}
	if logflags.ELFLogger().Logger.Level != logrus.PanicLevel {
		t.Fatalf("expected ELF logger to stay silent")
	}
}

func TestSetupAllEnablesEverything(t *testing.T) {
	logflags.Setup([]string{"all"})
	if !logflags.Engine() || !logflags.ELF() || !logflags.DWARF() || !logflags.HWBreak() {
		t.Fatal("expected every layer to be enabled by \"all\"")
	}
}
