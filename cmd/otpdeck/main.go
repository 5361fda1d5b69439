package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"otpdeck/internal/agent"
	"otpdeck/internal/tui"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) <= 1 {
		runTUI()
		return
	}

	command := strings.ToLower(os.Args[1])
	if handler, ok := commandHandlers()[command]; ok {
		handler()
		return
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
	printUsage()
	os.Exit(1)
}

func commandHandlers() map[string]func() {
	return map[string]func(){
		"list":    runList,
		"codes":   runCodes,
		"add":     runAdd,
		"import":  runImport,
		"new":     runNew,
		"rename":  runRename,
		"delete":  runDelete,
		"rm":      runDelete, // Alias for delete
		"move":    runMove,
		"qr":      runQR,
		"watch":   runWatch,
		"config":  runConfig,
		"diag":    runDiag,
		"version": runVersion,
		"help":    printUsage,
		"--help":  printUsage,
		"-h":      printUsage,
	}
}

func runVersion() {
	fmt.Printf("otpdeck version %s\n", version)
}

// runTUI owns the store for the lifetime of the interactive session
func runTUI() {
	s := mustOpenSession(sessionOptionsFor("tui"))
	defer s.close()

	startTime := time.Now()
	s.logger.Info("app.started", "Application started", map[string]interface{}{
		"version": version,
		"ts":      startTime.UTC().Format(time.RFC3339),
		"records": s.store.Len(),
	})

	a, err := agent.New(s.store, s.newScheduler(), s.kv, s.logger, s.agentOptions()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		s.close()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agentDone := make(chan error, 1)
	go func() { agentDone <- a.Run(ctx) }()

	p := tea.NewProgram(tui.NewModel(a, s.logger), tea.WithAltScreen(), tea.WithContext(ctx))

	_, err = p.Run()
	interrupted := ctx.Err() != nil
	exitReason := "normal"
	if interrupted {
		exitReason = "signal"
	}

	cancel()
	<-agentDone

	if err != nil && !interrupted {
		exitReason = "error"
		s.logger.Error("app.error", "Application error", map[string]interface{}{
			"error": err.Error(),
		})
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		s.close()
		os.Exit(1)
	}

	s.logger.Info("app.exited", "Application exited", map[string]interface{}{
		"ts":     time.Now().UTC().Format(time.RFC3339),
		"reason": exitReason,
	})
}

func printUsage() {
	fmt.Printf(`otpdeck - Terminal TOTP code manager (version %s)

Usage:
  otpdeck                          Start the interactive TUI (default)
  otpdeck list                     List stored secrets
  otpdeck codes [--at <unix>]      Print the current codes, or the codes at a given instant
  otpdeck add <label> <secret>     Add a Base32 secret
  otpdeck import <otpauth-uri>     Add a secret from an otpauth://totp URI
  otpdeck new <label> [issuer]     Generate a new secret and print its QR code
  otpdeck rename <n> <label>       Rename secret number n
  otpdeck delete <n>               Delete secret number n
  otpdeck rm <n>                   Alias for delete
  otpdeck move <from> <to>         Move a secret to another position
  otpdeck qr <n> [file.png]        Show secret n as a QR code, or write it to a PNG file
  otpdeck watch                    Print codes every period until interrupted
  otpdeck config                   Print the effective configuration
  otpdeck config test [path]       Test configuration file for validity (defaults to system/user configs)
  otpdeck diag [--output path] [--no-logs] [--no-config]  Create a redacted diagnostic package (ZIP)
  otpdeck version                  Print version information
  otpdeck help                     Show this help message

Secrets are numbered from 1 in the order shown by "otpdeck list".

TUI keys:
  ↑/↓ or k/j   select           enter or c   copy code
  a            toggle add panel  i            focus add panel
  r            rename           d            delete
  K/J          move up/down     q            quit

Environment:
  OTPDECK_STATE_DIR    State directory (store, lock, log)
  OTPDECK_CONFIG_DIR   System configuration directory
  OTPDECK_PASSPHRASE   Store passphrase, overrides the passphrase file
`, version)
}
