package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-mdb/mdb/pkg/config"
	"github.com/go-mdb/mdb/pkg/dbgerr"
	"github.com/go-mdb/mdb/pkg/logflags"
	"github.com/go-mdb/mdb/pkg/regs"
	"github.com/go-mdb/mdb/pkg/target"
)

var logLayers string

func main() {
	rootCommand := &cobra.Command{
		Use:   "mdb",
		Short: "mdb is a native ELF/DWARF process debugger core smoke tool.",
	}
	rootCommand.PersistentFlags().StringVar(&logLayers, "log", "", "comma-separated debug layers to log: engine,elf,dwarf,hwbreak,all")

	rootCommand.AddCommand(launchCommand())
	rootCommand.AddCommand(attachCommand())

	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func launchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "launch <path> [args...]",
		Short: "Launch a program under ptrace and print its stop state.",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			logflags.Setup(strings.Split(logLayers, ","))

			cfg := config.LoadConfig()
			tgt, err := target.LaunchWithOptions(args[0], args[1:], cfg.DisableASLR)
			if err != nil {
				exitOnError(err)
			}
			defer tgt.Close()
			applyConfig(tgt, cfg)
			dumpState(tgt)
		},
	}
}

func attachCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <pid> [exe-path]",
		Short: "Attach to a running process and print its stop state.",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			logflags.Setup(strings.Split(logLayers, ","))

			pid, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid pid %q: %v\n", args[0], err)
				os.Exit(1)
			}
			exePath := fmt.Sprintf("/proc/%d/exe", pid)
			if len(args) == 2 {
				exePath = args[1]
			}
			tgt, err := target.Attach(pid, exePath)
			if err != nil {
				exitOnError(err)
			}
			defer tgt.Close()
			applyConfig(tgt, config.LoadConfig())
			dumpState(tgt)
		},
	}
}

// applyConfig applies the config options that affect a live target: the
// hardware stop-point cap and the debug-info-directories fallback search
// DWARF loading uses when the binary itself is stripped. DisableASLR is
// applied earlier, at launch time, since it only affects a fork that has
// already happened by the time a target exists.
func applyConfig(tgt *target.Target, cfg *config.Config) {
	tgt.Process.SetMaxHardwareStopPoints(cfg.Clamped())
	tgt.DebugInfoDirs = cfg.DebugInfoDirectories
}

func dumpState(tgt *target.Target) {
	r, err := tgt.Registers()
	if err != nil {
		exitOnError(err)
	}
	fmt.Printf("pid=%d state=%s\n", tgt.Process.Pid(), tgt.Process.State())
	printRegisters(r)

	sym, ok, err := tgt.SymbolAtPC()
	if err != nil {
		exitOnError(err)
	}
	if ok {
		fmt.Printf("pc is inside %s\n", sym.Name)
	}
}

func printRegisters(r *regs.Registers) {
	for _, info := range regs.Table {
		v, err := r.ByName(info.Name)
		if err != nil {
			continue
		}
		fmt.Printf("%-6s 0x%016x\n", info.Name, v)
	}
}

func exitOnError(err error) {
	if kind, ok := dbgerr.KindOf(err); ok {
		fmt.Fprintf(os.Stderr, "%s: %v\n", kind, err)
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
