package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"otpdeck/internal/config"
	"otpdeck/internal/diag"
	"otpdeck/internal/logging"
	"otpdeck/internal/storelock"
)

// runDiag writes a redacted support bundle. The store is never opened.
func runDiag() {
	cfg, err := config.Load()
	if err != nil {
		fail(nil, "%v", err)
	}
	logger := logging.NewLogger(logging.LevelWarn)

	diagCfg := diag.NewConfig(version)
	diagCfg.LogPath = cfg.LogPath()
	diagCfg.ConfigFiles["system.yaml"] = config.SystemConfigPath()
	if userPath := config.UserConfigPath(); userPath != "" {
		diagCfg.ConfigFiles["user.yaml"] = userPath
	}
	if err := applyDiagFlags(diagCfg, os.Args[2:]); err != nil {
		fail(nil, "%v", err)
	}
	diagCfg.Status = storeStatus(cfg, logger)

	fmt.Println("Creating diagnostic package...")
	zipPath, err := diag.NewPackager(diagCfg, logger).CreatePackage()
	if err != nil {
		fail(nil, "Failed to create diagnostic package: %v", err)
	}
	fmt.Printf("✓ Diagnostic package created: %s\n", zipPath)
	fmt.Println("  Secrets, passphrases and store contents are not included.")
}

func applyDiagFlags(cfg *diag.Config, args []string) error {
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--output":
			if i+1 >= len(args) {
				return fmt.Errorf("--output requires a path")
			}
			cfg.OutputPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--output="):
			cfg.OutputPath = strings.TrimPrefix(arg, "--output=")
		case arg == "--no-logs":
			cfg.IncludeLogs = false
		case arg == "--no-config":
			cfg.IncludeConfig = false
		default:
			return fmt.Errorf("unknown argument %q", arg)
		}
	}
	return nil
}

// storeStatus describes the store from the outside: paths, size and lease
func storeStatus(cfg config.Config, logger *logging.Logger) map[string]interface{} {
	status := map[string]interface{}{
		"backend":   cfg.Store.Backend,
		"path":      cfg.StorePath(),
		"encrypted": cfg.Store.Encrypt,
		"leniency":  cfg.Engine.Leniency,
	}

	if info, err := os.Stat(cfg.StorePath()); err == nil {
		status["size_bytes"] = info.Size()
		status["modified"] = info.ModTime().UTC().Format(time.RFC3339)
	} else {
		status["exists"] = false
	}

	lease, err := storelock.NewManager(cfg.LockPath(), "diag", cfg.LockTimeout(), logger).Status()
	switch {
	case err != nil:
		status["lock"] = "unreadable: " + err.Error()
	case lease == nil:
		status["lock"] = "free"
	default:
		status["lock"] = map[string]interface{}{
			"pid":         lease.PID,
			"command":     lease.Command,
			"age_seconds": int(lease.Age(time.Now()).Seconds()),
		}
	}
	return status
}
