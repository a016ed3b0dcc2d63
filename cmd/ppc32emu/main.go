// Command ppc32emu is the machine's CLI entry point: boot a configured
// core, run it to completion or interactively under the debugger, or
// validate a config file. Generalized from the teacher's main.go
// (pborman/getopt flag parsing feeding emu/core directly) to
// spf13/cobra subcommands, since SPEC_FULL.md's CLI surface (run,
// debug, validate-config) is naturally multi-verb rather than the
// teacher's single always-boot-a-mainframe entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oldmac/ppc32/internal/config"
	"github.com/oldmac/ppc32/internal/debugger"
	"github.com/oldmac/ppc32/internal/tracelog"
	"github.com/oldmac/ppc32/machine"
)

var (
	configPath string
	logPath    string
	debugLog   bool
)

func main() {
	root := &cobra.Command{
		Use:   "ppc32emu",
		Short: "PowerPC 32-bit core emulator",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "ppc32.toml", "machine configuration file")
	root.PersistentFlags().StringVarP(&logPath, "log", "l", "", "log file (stderr only if omitted)")
	root.PersistentFlags().BoolVar(&debugLog, "debug", false, "mirror every log line to stderr")

	root.AddCommand(runCmd(), debugCmd(), validateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cfg config.MachineConfig) {
	var file *os.File
	if logPath != "" {
		f, err := os.Create(logPath)
		if err == nil {
			file = f
		}
	}
	level := tracelog.ParseLevel(cfg.LogLevel)
	handler := tracelog.New(file, level, debugLog)
	slog.SetDefault(slog.New(handler))
}

func loadConfig() (config.MachineConfig, error) {
	if _, err := os.Stat(configPath); err != nil {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func runCmd() *cobra.Command {
	var instrLimit uint64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "boot the machine and run until it halts or a count is reached",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg)
			m, err := machine.New(cfg)
			if err != nil {
				return err
			}
			slog.Info("ppc32emu started", "pvr", fmt.Sprintf("%#x", cfg.CPU.PVR))
			if instrLimit > 0 {
				m.RunUntil(instrLimit)
			} else {
				m.Run()
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&instrLimit, "instructions", 0, "stop after this many instructions (0 = run forever)")
	return cmd
}

func debugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "boot the machine under the interactive debugger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg)
			m, err := machine.New(cfg)
			if err != nil {
				return err
			}
			debugger.New(m).Run()
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "strictly decode a config file and report unknown keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.LoadStrict(configPath)
			if err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}
