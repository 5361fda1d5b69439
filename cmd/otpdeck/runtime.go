package main

import (
	"errors"
	"fmt"
	"os"

	"otpdeck/internal/agent"
	"otpdeck/internal/config"
	"otpdeck/internal/fsutil"
	"otpdeck/internal/kvstore"
	"otpdeck/internal/logging"
	"otpdeck/internal/otp"
	"otpdeck/internal/scheduler"
	"otpdeck/internal/secrets"
	"otpdeck/internal/storelock"
	"otpdeck/internal/vault"
)

// session bundles everything a command needs to work with the store
type session struct {
	cfg    config.Config
	logger *logging.Logger
	kv     kvstore.Store
	lock   *storelock.Manager
	store  *secrets.Store
	gen    *otp.Generator
}

type sessionOptions struct {
	// command is recorded in the lease file
	command string
	// exclusive takes the store lease before opening the store
	exclusive bool
	// logToFile keeps log output off the terminal
	logToFile bool
}

// leaseHolders are the commands that write the store, or run an agent that may
var leaseHolders = map[string]bool{
	"tui":    true,
	"watch":  true,
	"add":    true,
	"import": true,
	"new":    true,
	"rename": true,
	"delete": true,
	"move":   true,
}

// sessionOptionsFor returns the session a command needs. Only the TUI logs to a file.
func sessionOptionsFor(command string) sessionOptions {
	return sessionOptions{
		command:   command,
		exclusive: leaseHolders[command],
		logToFile: command == "tui",
	}
}

// openSession loads the configuration and opens the store it describes
func openSession(opts sessionOptions) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, opts.logToFile)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger}

	if opts.exclusive && cfg.Store.Backend != config.BackendMemory {
		lock := storelock.NewManager(cfg.LockPath(), opts.command, cfg.LockTimeout(), logger)
		if err := lock.Acquire(); err != nil {
			s.close()
			if errors.Is(err, storelock.ErrLocked) {
				return nil, lockedError(lock)
			}
			return nil, err
		}
		s.lock = lock
	}

	var v *vault.Vault
	if cfg.Store.Encrypt && cfg.Store.Backend != config.BackendMemory {
		passphrase, err := vault.LoadOrGeneratePassphrase(cfg.PassphrasePath())
		if err != nil {
			s.close()
			return nil, err
		}
		v, err = vault.New(passphrase, vault.DefaultKDFParams())
		if err != nil {
			s.close()
			return nil, err
		}
	}

	s.kv, err = kvstore.Open(kvstore.Options{
		Backend: kvstore.Backend(cfg.Store.Backend),
		Path:    cfg.StorePath(),
		Vault:   v,
	}, logger)
	if err != nil {
		s.close()
		return nil, err
	}

	policy := otp.Leniency(cfg.Engine.Leniency)
	s.store, err = secrets.Open(s.kv, policy, logger)
	if err != nil {
		s.close()
		return nil, err
	}
	s.gen = otp.NewGenerator(otp.WithLeniency(policy))

	return s, nil
}

func newLogger(cfg config.Config, toFile bool) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if !toFile {
		return logging.NewLogger(level), nil
	}
	if err := fsutil.EnsureStateDirectory(fsutil.GetStateDir()); err != nil {
		return nil, err
	}
	return logging.NewFileLogger(level, cfg.LogPath())
}

// lockedError describes who holds the store lease
func lockedError(lock *storelock.Manager) error {
	lease, err := lock.Status()
	if err != nil || lease == nil {
		return storelock.ErrLocked
	}
	return fmt.Errorf("%w: pid %d (%s) since %s", storelock.ErrLocked, lease.PID, lease.Command, lease.SinceTS.Format("2006-01-02 15:04:05"))
}

// agentOptions configures an agent for this session; a held lease is refreshed by the agent
func (s *session) agentOptions() []agent.Option {
	opts := []agent.Option{agent.WithRedrawInterval(s.cfg.RedrawInterval())}
	if s.lock != nil {
		opts = append(opts, agent.WithLease(s.lock))
	}
	return opts
}

func (s *session) newScheduler() *scheduler.Scheduler {
	return scheduler.New(s.gen, s.cfg.Scheduler.Parallelism, s.logger)
}

// close releases the store, the lease and the log file in reverse order
func (s *session) close() {
	if s.kv != nil {
		fsutil.CloseWithError(s.kv.Close, s.logger, "store")
	}
	if s.lock != nil {
		if err := s.lock.Release(); err != nil {
			s.logger.Warn("store.lock.release_failed", "Failed to release store lock", map[string]interface{}{
				"path":  s.lock.Path(),
				"error": err.Error(),
			})
		}
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

// mustOpenSession is openSession for command handlers: failures exit
func mustOpenSession(opts sessionOptions) *session {
	s, err := openSession(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	return s
}
