package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/PiperEve/BlueGhost/internal/clock"
	"github.com/PiperEve/BlueGhost/internal/content"
	"github.com/PiperEve/BlueGhost/internal/expiry"
	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/notify"
	"github.com/PiperEve/BlueGhost/internal/persist"
	"github.com/PiperEve/BlueGhost/internal/rewind"
)

// Config holds the lifecycle durations and quota policy.
type Config struct {
	PostTTL         time.Duration
	BattleDuration  time.Duration
	WinnerExtension time.Duration
	OneVotePerUser  bool
	Rewind          rewind.Policy
}

// DefaultConfig returns the 24h / 24h / 48h lifecycle with the 3/10/5
// rewind policy.
func DefaultConfig() Config {
	return Config{
		PostTTL:         content.DefaultPostTTL,
		BattleDuration:  content.DefaultBattleDuration,
		WinnerExtension: expiry.DefaultWinnerExtension,
		Rewind:          rewind.DefaultPolicy(),
	}
}

// Facade serialises all access to engine state.
type Facade struct {
	mu       sync.Mutex
	cfg      Config
	clock    clock.Clock
	content  *content.Store
	ledger   *rewind.Ledger
	backend  persist.Backend
	notifier notify.Notifier
	seq      *clock.Sequence
	logger   *slog.Logger

	// pending survives failed commits and is retried by the next call.
	pending effects
}

// Option configures a Facade.
type Option func(*options)

type options struct {
	clock    clock.Clock
	ids      model.IDGenerator
	backend  persist.Backend
	notifier notify.Notifier
	logger   *slog.Logger
}

// WithClock sets the time source. Defaults to clock.System.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDs sets the id generator. Defaults to UUIDv7.
func WithIDs(ids model.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// WithBackend sets where snapshots are written. Defaults to memory.
func WithBackend(b persist.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithNotifier sets the event sink. Defaults to discarding events.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a facade with empty state. Call Load to restore persisted
// state before serving.
func New(cfg Config, opts ...Option) *Facade {
	o := options{
		clock:    clock.System{},
		ids:      model.UUIDv7Generator{},
		notifier: notify.Nop{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == nil {
		o.backend = persist.NewMemory()
	}
	def := DefaultConfig()
	if cfg.PostTTL <= 0 {
		cfg.PostTTL = def.PostTTL
	}
	if cfg.BattleDuration <= 0 {
		cfg.BattleDuration = def.BattleDuration
	}
	if cfg.WinnerExtension <= 0 {
		cfg.WinnerExtension = def.WinnerExtension
	}

	store := content.New(o.clock, o.ids,
		content.WithPostTTL(cfg.PostTTL),
		content.WithBattleDuration(cfg.BattleDuration),
		content.WithOneVotePerUser(cfg.OneVotePerUser),
		content.WithPolicy(expiry.Policy{WinnerExtension: cfg.WinnerExtension}),
		content.WithLogger(o.logger.With("component", "content")),
	)
	ledger := rewind.New(o.clock, o.ids, cfg.Rewind, o.logger.With("component", "rewind"))
	cfg.Rewind = ledger.Policy()

	return &Facade{
		cfg:      cfg,
		clock:    o.clock,
		content:  store,
		ledger:   ledger,
		backend:  o.backend,
		notifier: o.notifier,
		seq:      clock.NewSequence(),
		logger:   o.logger,
	}
}

// effects collects changes not yet persisted and events not yet delivered.
type effects struct {
	content bool
	rewind  bool
	events  []model.Event
}

func (e *effects) emit(ev model.Event) {
	e.events = append(e.events, ev)
}

// reconcileLocked runs the expiration engine at now and records events.
// Caller holds f.mu.
func (f *Facade) reconcileLocked(now time.Time) expiry.Report {
	report := f.content.ReconcileAt(now)
	if !report.Changed {
		return report
	}
	f.pending.content = true

	for _, r := range report.Resolved {
		details := map[string]string{
			"winner_id":       r.WinnerID,
			"loser_id":        r.LoserID,
			"original_votes":  strconv.Itoa(r.OriginalVotes),
			"challenge_votes": strconv.Itoa(r.ChallengeVotes),
		}
		if r.WinnerMissing {
			details["winner_missing"] = "true"
		} else {
			details["winner_expires"] = r.WinnerExpires.Format(time.RFC3339)
		}
		f.pending.emit(model.Event{
			Kind:     model.EventBattleResolved,
			At:       now,
			BattleID: r.BattleID,
			PostID:   r.WinnerID,
			Details:  details,
		})
	}
	for _, id := range report.ExpiredPosts {
		f.pending.emit(model.Event{Kind: model.EventPostExpired, At: now, PostID: id})
	}
	for _, id := range report.DroppedBattles {
		f.pending.emit(model.Event{Kind: model.EventBattleDropped, At: now, BattleID: id})
	}

	f.logger.Debug("reconciled",
		"resolved", len(report.Resolved),
		"expired_posts", len(report.ExpiredPosts),
		"dropped_battles", len(report.DroppedBattles),
	)
	return report
}

// commitLocked persists dirty documents, then delivers pending events.
// On a save failure everything not yet written stays pending, including
// the events, so the next call retries. Caller holds f.mu.
func (f *Facade) commitLocked(ctx context.Context) error {
	p := &f.pending
	if p.content {
		if err := persist.SaveContent(ctx, f.backend, f.content.Snapshot()); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
		p.content = false
	}
	if p.rewind {
		if err := persist.SaveRewind(ctx, f.backend, f.ledger.Snapshot()); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
		p.rewind = false
	}

	events := p.events
	p.events = nil
	for _, ev := range events {
		ev.Seq = f.seq.Next()
		if err := f.notifier.Notify(ctx, ev); err != nil {
			f.logger.Warn("notify failed", "kind", ev.Kind, "seq", ev.Seq, "error", err)
		}
	}
	return nil
}

// finishLocked commits pending effects and returns cmdErr, or the commit
// error when the command itself succeeded.
func (f *Facade) finishLocked(ctx context.Context, cmdErr error) error {
	if err := f.commitLocked(ctx); err != nil {
		if cmdErr != nil {
			f.logger.Error("commit after failed command", "error", err, "command_error", cmdErr)
			return cmdErr
		}
		return err
	}
	return cmdErr
}

// readLocked commits pending effects for a read-only call. A persist
// failure is logged and left pending; the reconciled view is still served.
func (f *Facade) readLocked(ctx context.Context) {
	if err := f.commitLocked(ctx); err != nil {
		f.logger.Warn("persist failed during read, will retry",
			"error", err,
			"pending_events", len(f.pending.events),
		)
	}
}

// Restore replaces in-memory state with the persisted snapshot without
// applying any time-driven transitions. found is false on first run.
func (f *Facade) Restore(ctx context.Context) (found bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restoreLocked(ctx)
}

func (f *Facade) restoreLocked(ctx context.Context) (bool, error) {
	snap, found, err := persist.LoadSnapshot(ctx, f.backend)
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}
	f.content.Restore(snap.Content)
	f.ledger.Restore(snap.Rewind)
	f.pending = effects{}
	f.logger.Info("state loaded",
		"found", found,
		"posts", len(snap.Content.Posts),
		"battles", len(snap.Content.Battles),
		"accounts", len(snap.Rewind.Accounts),
	)
	return found, nil
}

// Load restores persisted state, then reconciles and rolls the rewind
// ledger over to the current month. Content that expired while the
// process was down is removed here.
func (f *Facade) Load(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.restoreLocked(ctx); err != nil {
		return err
	}

	now := f.clock.Now()
	f.reconcileLocked(now)
	f.resetLocked(now)
	return f.commitLocked(ctx)
}

func (f *Facade) resetLocked(now time.Time) rewind.ResetResult {
	res := f.ledger.ResetMonthly("")
	if len(res.Users) == 0 {
		return res
	}
	f.pending.rewind = true
	f.pending.emit(model.Event{
		Kind: model.EventRewindMonthlyReset,
		At:   now,
		Details: map[string]string{
			"month":  res.MonthKey,
			"users":  strconv.Itoa(len(res.Users)),
			"purged": strconv.Itoa(res.Purged),
		},
	})
	return res
}

// Tick runs one reconciliation pass and retries any commit a previous
// call could not finish. Schedulers call it periodically.
func (f *Facade) Tick(ctx context.Context) (expiry.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	report := f.reconcileLocked(f.clock.Now())
	return report, f.commitLocked(ctx)
}

// MonthlyReset rolls every rewind account over to the current month.
func (f *Facade) MonthlyReset(ctx context.Context) (rewind.ResetResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	f.reconcileLocked(now)
	res := f.resetLocked(now)
	return res, f.commitLocked(ctx)
}

// Snapshot returns a copy of the full state after reconciling it. Like
// the other reads it does not fail on a persist error.
func (f *Facade) Snapshot(ctx context.Context) (persist.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reconcileLocked(f.clock.Now())
	snap := persist.Snapshot{Content: f.content.Snapshot(), Rewind: f.ledger.Snapshot()}
	f.readLocked(ctx)
	return snap, nil
}

// Config returns the effective configuration.
func (f *Facade) Config() Config {
	return f.cfg
}

// Now returns the facade clock's current time.
func (f *Facade) Now() time.Time {
	return f.clock.Now()
}
