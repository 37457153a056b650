// Package scanner drives the deal-discovery cycle: fetch from every source,
// aggregate, match per user, dedup, notify.
package scanner

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tondealbot/internal/aggregate"
	"tondealbot/internal/config"
	"tondealbot/internal/match"
	"tondealbot/internal/models"
	"tondealbot/internal/source"
)

// PrefStore is the per-user preference collaborator.
type PrefStore interface {
	ListEnabledUsers(ctx context.Context) ([]int64, error)
	GetOrCreateScannerSettings(ctx context.Context, userID int64) (models.UserScannerSettings, error)
}

// Ledger is the persistent set of already-surfaced listing identities.
type Ledger interface {
	WasSeen(ctx context.Context, dealID string) (bool, error)
	MarkSeen(ctx context.Context, deal models.SeenDeal) error
}

// Notifier delivers one listing to one user.
type Notifier interface {
	Notify(userID int64, l models.Listing) error
}

type Scanner struct {
	prefs    PrefStore
	ledger   Ledger
	notifier Notifier
	adapters []source.Adapter

	lookback     time.Duration
	fetchTimeout time.Duration
	defaultTick  time.Duration
	maxPerUser   int

	// Cold start: the first cycle after process start populates the ledger
	// without delivering, so an offline backlog does not flood every user.
	suppressFirstCycle bool
	cycles             atomic.Int64
	running            atomic.Bool
}

func New(prefs PrefStore, ledger Ledger, n Notifier, adapters []source.Adapter, cfg *config.Config) *Scanner {
	return &Scanner{
		prefs:              prefs,
		ledger:             ledger,
		notifier:           n,
		adapters:           adapters,
		lookback:           time.Duration(cfg.LookbackMinutes) * time.Minute,
		fetchTimeout:       cfg.FetchTimeout,
		defaultTick:        time.Duration(cfg.DefaultTickSeconds) * time.Second,
		maxPerUser:         cfg.MaxDealsPerUser,
		suppressFirstCycle: cfg.ColdStartSuppress,
	}
}

// Run loops cycles until the context is cancelled. A bad cycle is logged and
// retried on the next tick, never fatal.
func (s *Scanner) Run(ctx context.Context) {
	slog.Info("Scanner loop started", "adapters", len(s.adapters))
	for {
		s.RunCycle(ctx)

		sleep := s.nextSleep(ctx)
		select {
		case <-ctx.Done():
			slog.Info("Scanner loop stopped")
			return
		case <-time.After(sleep):
		}
	}
}

// RunCycle executes one full scan cycle. Concurrent invocations (e.g. a cron
// tick overlapping a slow cycle) are collapsed: the second caller returns
// immediately.
func (s *Scanner) RunCycle(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		slog.Warn("Scan cycle still running, skipping tick")
		return
	}
	defer s.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in scan cycle", "panic", r)
		}
	}()

	cycle := s.cycles.Add(1)
	suppress := s.suppressFirstCycle && cycle == 1

	users, err := s.prefs.ListEnabledUsers(ctx)
	if err != nil {
		slog.Warn("Failed to list enabled users", "error", err)
		return
	}
	if len(users) == 0 {
		return
	}

	listings := aggregate.Merge(s.fetchAll(ctx)...)
	if len(listings) == 0 {
		return
	}
	slog.Info("Aggregated listings", "count", len(listings), "users", len(users))

	now := time.Now()
	var notified int
	for _, userID := range users {
		settings, err := s.prefs.GetOrCreateScannerSettings(ctx, userID)
		if err != nil {
			slog.Warn("Failed to load settings", "user", userID, "error", err)
			continue
		}
		if !settings.Enabled {
			continue
		}
		notified += s.processUser(ctx, userID, settings, listings, now, suppress)
	}
	if notified > 0 || suppress {
		slog.Info("Scan cycle finished", "notified", notified, "cold_start", suppress)
	}
}

// processUser runs the matcher for one user and walks the ranked candidates.
//
// Seen policy: a listing is marked seen after a delivery attempt, success or
// failure alike — a persistently-blocked user must not cause the same lot to
// be retried every cycle. A listing no user matched is deliberately NOT
// marked, so it stays eligible once someone relaxes their filters. If the
// ledger cannot be read the listing is skipped for this cycle: degraded mode
// is silence, never a duplicate flood.
func (s *Scanner) processUser(ctx context.Context, userID int64, settings models.UserScannerSettings, listings []models.Listing, now time.Time, suppress bool) int {
	candidates := match.Select(listings, settings, now, s.lookback)

	var sent int
	for _, l := range candidates {
		if sent >= s.maxPerUser {
			break
		}
		id := l.Identity()

		seen, err := s.ledger.WasSeen(ctx, id)
		if err != nil {
			slog.Warn("Ledger unavailable, skipping listing this cycle", "deal", id, "error", err)
			continue
		}
		if seen {
			continue
		}

		if !suppress {
			if err := s.notifier.Notify(userID, l); err != nil {
				slog.Warn("Delivery failed", "user", userID, "deal", id, "error", err)
			} else {
				slog.Info("Deal delivered", "user", userID, "name", l.DisplayName(), "price", l.PriceTON)
			}
		}
		sent++

		if err := s.ledger.MarkSeen(ctx, l.Snapshot(now)); err != nil {
			slog.Warn("Failed to mark deal seen", "deal", id, "error", err)
		}
	}
	return sent
}

// fetchAll invokes every adapter concurrently, each under its own timeout so
// one hanging backend cannot stall the cycle. Partial results are expected.
func (s *Scanner) fetchAll(ctx context.Context) [][]models.Listing {
	batches := make([][]models.Listing, len(s.adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range s.adapters {
		i, a := i, a
		g.Go(func() error {
			actx, cancel := context.WithTimeout(gctx, s.fetchTimeout)
			defer cancel()
			batches[i] = a.Fetch(actx)
			slog.Debug("Adapter fetch finished", "adapter", a.Name(), "count", len(batches[i]))
			return nil
		})
	}
	_ = g.Wait() // adapters never return errors
	return batches
}

// nextSleep is the minimum poll_seconds across enabled users, clamped to a
// sane range. Recomputed each cycle since settings change between cycles.
func (s *Scanner) nextSleep(ctx context.Context) time.Duration {
	users, err := s.prefs.ListEnabledUsers(ctx)
	if err != nil || len(users) == 0 {
		return s.defaultTick
	}

	best := 0
	for _, userID := range users {
		settings, err := s.prefs.GetOrCreateScannerSettings(ctx, userID)
		if err != nil || !settings.Enabled {
			continue
		}
		if best == 0 || settings.PollSeconds < best {
			best = settings.PollSeconds
		}
	}
	if best == 0 {
		return s.defaultTick
	}
	if best < models.MinPollSeconds {
		best = models.MinPollSeconds
	}
	if best > models.MaxPollSeconds {
		best = models.MaxPollSeconds
	}
	return time.Duration(best) * time.Second
}
