// Package logflags configures logging for the debugger core. It follows
// go-delve/delve's pkg/logflags shape: a set of named, independently
// switchable loggers backed by logrus, all silent (PanicLevel) until
// explicitly enabled by Setup.
package logflags

import (
	"github.com/sirupsen/logrus"
)

var (
	engine  = false
	elf     = false
	dwarf   = false
	hwbreak = false
)

func makeLogger(enabled bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !enabled {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// Engine returns true if the process engine (pkg/native) should log.
func Engine() bool { return engine }

// EngineLogger returns a logger for the process engine: resume/wait/memory
// tracing, breakpoint installation, hardware register allocation.
func EngineLogger() *logrus.Entry {
	return makeLogger(engine, logrus.Fields{"layer": "engine"})
}

// ELF returns true if the ELF image loader should log.
func ELF() bool { return elf }

// ELFLogger returns a logger for section/symbol table parsing.
func ELFLogger() *logrus.Entry {
	return makeLogger(elf, logrus.Fields{"layer": "elf"})
}

// DWARF returns true if the DWARF reader should log.
func DWARF() bool { return dwarf }

// DWARFLogger returns a logger for abbreviation table and DIE parsing.
func DWARFLogger() *logrus.Entry {
	return makeLogger(dwarf, logrus.Fields{"layer": "dwarf"})
}

// HWBreak returns true if hardware debug-register allocation should log.
func HWBreak() bool { return hwbreak }

// HWBreakLogger returns a logger for DR0-DR7 programming.
func HWBreakLogger() *logrus.Entry {
	return makeLogger(hwbreak, logrus.Fields{"layer": "hwbreak"})
}

// Setup enables the named layers. Valid names: "engine", "elf", "dwarf",
// "hwbreak", "all". Unknown names are ignored, matching the teacher's
// forgiving flag-parsing style for --log=<layers>.
func Setup(layers []string) {
	for _, l := range layers {
		switch l {
		case "engine":
			engine = true
		case "elf":
			elf = true
		case "dwarf":
			dwarf = true
		case "hwbreak":
			hwbreak = true
		case "all":
			engine, elf, dwarf, hwbreak = true, true, true, true
		}
	}
}
