package policy

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"github.com/ziXnOrg/ORCA/internal/logging"
)

// Reloader supervises periodic and file-change-triggered reloads of an
// Engine's policy file (spec.md §9 "Policy hot reload",
// SPEC_FULL.md §4.4 "Hot reload implementation"). The gocron job is the
// guaranteed floor; the fsnotify watcher is a fast path that converges
// on the same rule set between cron ticks.
type Reloader struct {
	engine *Engine
	path   string
	logger *slog.Logger

	scheduler gocron.Scheduler
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

// NewReloader builds a Reloader for path on engine. It does not start
// anything; call Start.
func NewReloader(engine *Engine, path string, logger *slog.Logger) *Reloader {
	return &Reloader{
		engine: engine,
		path:   path,
		logger: logging.Default(logger).With("component", "policy-reloader"),
	}
}

// Start performs an initial load, then launches the gocron periodic job
// (every period) and the fsnotify watcher. Both funnel through reload,
// which takes the engine's write lock only for the final pointer swap
// (spec.md §9: "do not share the in-memory rule vector without a
// read/write lock").
func (r *Reloader) Start(period time.Duration) error {
	if err := r.reload(); err != nil {
		r.logger.Error("initial policy load failed", "path", r.path, "error", err)
		return fmt.Errorf("policy: initial load of %s: %w", r.path, err)
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("policy: create reload scheduler: %w", err)
	}
	if _, err := s.NewJob(
		gocron.DurationJob(period),
		gocron.NewTask(r.reloadAndLog),
		gocron.WithName("policy-reload"),
	); err != nil {
		return fmt.Errorf("policy: create reload job: %w", err)
	}
	r.scheduler = s
	s.Start()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		// The cron job remains the guaranteed floor; absence of
		// fsnotify is degraded, not fatal.
		r.logger.Warn("fsnotify watcher unavailable, relying on cron floor only", "error", err)
		return nil
	}
	if err := w.Add(filepath.Dir(r.path)); err != nil {
		r.logger.Warn("fsnotify watch failed, relying on cron floor only", "error", err)
		_ = w.Close()
		return nil
	}
	r.watcher = w
	r.done = make(chan struct{})
	go r.watchLoop()
	return nil
}

func (r *Reloader) watchLoop() {
	target := filepath.Clean(r.path)
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				r.reloadAndLog()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("fsnotify watcher error", "error", err)
		case <-r.done:
			return
		}
	}
}

func (r *Reloader) reloadAndLog() {
	if err := r.reload(); err != nil {
		r.logger.Error("policy reload failed, keeping previous policy", "path", r.path, "error", err)
	}
}

// reload loads r.path into the engine and records the outcome via the
// audit sink regardless of success, per spec.md §9 ("the reload event
// is recorded via the audit sink").
func (r *Reloader) reload() error {
	err := r.engine.Load(r.path)
	d := Decision{Phase: "reload", Kind: "policy_file", RuleName: "builtin:policy-reload", Message: r.path}
	if err != nil {
		d.Action, d.Outcome, d.Reason = ActionDeny, OutcomeDenied, redactReason(err.Error())
	} else {
		d.Action, d.Outcome = ActionAllow, OutcomeAllowed
	}
	currentAuditSink().RecordAudit(d)
	return err
}

// Stop shuts down the scheduler and watcher, if running.
func (r *Reloader) Stop() error {
	if r.done != nil {
		close(r.done)
	}
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	if r.scheduler != nil {
		return r.scheduler.Shutdown()
	}
	return nil
}
