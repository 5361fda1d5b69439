package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"otpdeck/internal/agent"
	"otpdeck/internal/config"
	"otpdeck/internal/logging"
	"otpdeck/internal/otpauth"
)

// fail prints err and exits after releasing the session
func fail(s *session, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "❌ "+format+"\n", args...)
	if s != nil {
		s.close()
	}
	os.Exit(1)
}

func requireArgs(n int, usage string) {
	if len(os.Args) < n {
		fmt.Fprintf(os.Stderr, "Usage: otpdeck %s\n", usage)
		os.Exit(1)
	}
}

func runList() {
	s := mustOpenSession(sessionOptionsFor("list"))
	defer s.close()

	writeList(os.Stdout, s.store.List())
}

// runCodes prints a one-shot code table
func runCodes() {
	at, err := parseAt(os.Args[2:], time.Now())
	if err != nil {
		fail(nil, "%v", err)
	}

	s := mustOpenSession(sessionOptionsFor("codes"))
	defer s.close()

	sched := s.newScheduler()
	sched.Tick(at, s.store.List())
	writeCodes(os.Stdout, sched.Snapshot(), sched.SecondsUntilNextPeriod(at))
}

func runAdd() {
	requireArgs(4, "add <label> <secret>")
	label := os.Args[2]
	secret := strings.Join(os.Args[3:], " ")

	s := mustOpenSession(sessionOptionsFor("add"))
	defer s.close()

	addRecord(s, label, secret)
}

// addRecord adds one record and reports the outcome
func addRecord(s *session, label, secret string) {
	added, err := s.store.Add(label, secret)
	if err != nil {
		fail(s, "Failed to add %q: %v", label, err)
	}
	if !added {
		fmt.Println("Nothing added: label and secret are both required.")
		return
	}
	fmt.Printf("✓ Added %q as #%d\n", strings.TrimSpace(label), s.store.Len())
}

func runImport() {
	requireArgs(3, "import <otpauth-uri>")

	entry, err := otpauth.Parse(os.Args[2])
	if err != nil {
		fail(nil, "%v", err)
	}

	s := mustOpenSession(sessionOptionsFor("import"))
	defer s.close()

	addRecord(s, entry.Label, entry.Secret)
}

// runNew generates a secret, stores it and shows the enrolment QR code
func runNew() {
	requireArgs(3, "new <label> [issuer]")
	account := os.Args[2]
	issuer := ""
	if len(os.Args) > 3 {
		issuer = os.Args[3]
	}

	secret, err := otpauth.NewSecret(issuer, account)
	if err != nil {
		fail(nil, "%v", err)
	}
	label := otpauth.FormatLabel(issuer, account)

	s := mustOpenSession(sessionOptionsFor("new"))
	defer s.close()

	addRecord(s, label, secret)
	printQR(s, label, secret, "")
}

func runRename() {
	requireArgs(4, "rename <n> <label>")

	s := mustOpenSession(sessionOptionsFor("rename"))
	defer s.close()

	index, err := parseIndex(os.Args[2], s.store.Len())
	if err != nil {
		fail(s, "%v", err)
	}
	label := strings.Join(os.Args[3:], " ")

	renamed, err := s.store.Rename(index, label)
	if err != nil {
		fail(s, "Failed to rename #%d: %v", index+1, err)
	}
	if !renamed {
		fmt.Println("Nothing renamed: the new label is empty.")
		return
	}
	fmt.Printf("✓ Renamed #%d to %q\n", index+1, strings.TrimSpace(label))
}

func runDelete() {
	requireArgs(3, "delete <n>")

	s := mustOpenSession(sessionOptionsFor("delete"))
	defer s.close()

	index, err := parseIndex(os.Args[2], s.store.Len())
	if err != nil {
		fail(s, "%v", err)
	}
	rec, err := s.store.Get(index)
	if err != nil {
		fail(s, "%v", err)
	}

	if err := s.store.Delete(index); err != nil {
		fail(s, "Failed to delete #%d: %v", index+1, err)
	}
	fmt.Printf("✓ Deleted %q\n", rec.Label)
}

func runMove() {
	requireArgs(4, "move <from> <to>")

	s := mustOpenSession(sessionOptionsFor("move"))
	defer s.close()

	n := s.store.Len()
	from, err := parseIndex(os.Args[2], n)
	if err != nil {
		fail(s, "%v", err)
	}
	to, err := parseIndex(os.Args[3], n)
	if err != nil {
		fail(s, "%v", err)
	}

	if err := s.store.Move(from, to); err != nil {
		fail(s, "Failed to move #%d: %v", from+1, err)
	}
	fmt.Printf("✓ Moved #%d to #%d\n", from+1, to+1)
}

func runQR() {
	requireArgs(3, "qr <n> [file.png]")

	s := mustOpenSession(sessionOptionsFor("qr"))
	defer s.close()

	index, err := parseIndex(os.Args[2], s.store.Len())
	if err != nil {
		fail(s, "%v", err)
	}
	rec, err := s.store.Get(index)
	if err != nil {
		fail(s, "%v", err)
	}

	path := ""
	if len(os.Args) > 3 {
		path = os.Args[3]
	}
	printQR(s, rec.Label, rec.Secret, path)
}

// printQR renders the otpauth URI for a record to the terminal, or to a PNG at path
func printQR(s *session, label, secret, path string) {
	uri, err := otpauth.Build(label, secret)
	if err != nil {
		fail(s, "Failed to build otpauth URI for %q: %v", label, err)
	}

	if path != "" {
		if err := otpauth.QRCodePNG(uri, path, otpauth.DefaultQRSize); err != nil {
			fail(s, "%v", err)
		}
		fmt.Printf("✓ QR code for %q written to %s\n", label, path)
		return
	}

	art, err := otpauth.QRCodeTerminal(uri)
	if err != nil {
		fail(s, "%v", err)
	}
	fmt.Println(art)
	fmt.Printf("Scan to enrol %q\n", label)
}

// runWatch drives the agent without a terminal UI and prints a table per period
func runWatch() {
	s := mustOpenSession(sessionOptionsFor("watch"))
	defer s.close()

	a, err := agent.New(s.store, s.newScheduler(), s.kv, s.logger, s.agentOptions()...)
	if err != nil {
		fail(s, "%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := a.Run(ctx); err != nil {
			s.logger.Error("agent.error", "Agent stopped with error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	var lastPeriod uint64
	printed := false
	for frame := range a.Frames() {
		if printed && frame.Period == lastPeriod {
			continue
		}
		lastPeriod = frame.Period
		printed = true

		fmt.Printf("=== %s ===\n", frame.Now.Format(time.RFC3339))
		writeCodes(os.Stdout, snapshotOf(frame), frame.Countdown)
		fmt.Println()
	}
}

func runConfig() {
	if len(os.Args) < 3 {
		runConfigShow()
		return
	}

	subcommand := strings.ToLower(os.Args[2])

	switch subcommand {
	case "test":
		runConfigTest(logging.NewLogger(logging.LevelInfo))
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", subcommand)
		fmt.Fprintf(os.Stderr, "Valid subcommands: test\n")
		os.Exit(1)
	}
}

// runConfigShow prints the effective configuration as YAML
func runConfigShow() {
	cfg, err := config.Load()
	if err != nil {
		fail(nil, "%v", err)
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		fail(nil, "%v", err)
	}
	fmt.Print(string(data))
}

// runConfigTest validates configuration file(s)
func runConfigTest(logger *logging.Logger) {
	var cfg config.Config
	var configErr error

	if len(os.Args) > 3 {
		path := os.Args[3]
		fmt.Printf("Testing configuration file: %s\n", path)
		cfg, configErr = config.LoadFrom(path)
	} else {
		fmt.Println("Testing configuration (system + user merge):")
		fmt.Printf("  System config: %s\n", config.SystemConfigPath())
		if userPath := config.UserConfigPath(); userPath != "" {
			fmt.Printf("  User config:   %s\n", userPath)
		}
		fmt.Println()

		cfg, configErr = config.Load()
	}

	if configErr != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation FAILED:\n")
		fmt.Fprintf(os.Stderr, "   %v\n", configErr)

		logger.Error("config.validation.error", "Configuration validation failed", map[string]interface{}{
			"error": configErr.Error(),
		})
		os.Exit(1)
	}

	fmt.Println("✓ Configuration is VALID")
	fmt.Println()
	fmt.Println("Configuration Summary:")
	fmt.Printf("  Store Backend:        %s\n", cfg.Store.Backend)
	fmt.Printf("  Store Path:           %s\n", cfg.StorePath())
	fmt.Printf("  Encrypted:            %t\n", cfg.Store.Encrypt)
	fmt.Printf("  Lock Timeout:         %s\n", cfg.LockTimeout())
	fmt.Printf("  Leniency:             %s\n", cfg.Engine.Leniency)
	fmt.Printf("  Redraw Interval:      %s\n", cfg.RedrawInterval())
	fmt.Printf("  Parallelism:          %d\n", cfg.Scheduler.Parallelism)
	fmt.Printf("  Log Level:            %s\n", cfg.Logging.Level)
	fmt.Printf("  Log File:             %s\n", cfg.LogPath())

	logger.Info("config.validation.ok", "Configuration validation passed", map[string]interface{}{
		"backend":  cfg.Store.Backend,
		"leniency": cfg.Engine.Leniency,
	})
}
