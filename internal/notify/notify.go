// Package notify delivers lifecycle events to external sinks.
//
// Notification failures never fail the command that produced the event;
// the facade logs them and moves on.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-redis/redis"

	"github.com/PiperEve/BlueGhost/internal/model"
)

// Notifier receives lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, ev model.Event) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, ev model.Event) error

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, ev model.Event) error {
	return f(ctx, ev)
}

// Nop discards events.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, model.Event) error { return nil }

// Log writes each event as one structured log line.
type Log struct {
	Logger *slog.Logger
	Level  slog.Level
}

// NewLog returns a Log sink at info level. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{Logger: logger, Level: slog.LevelInfo}
}

// Notify implements Notifier.
func (l *Log) Notify(ctx context.Context, ev model.Event) error {
	attrs := []slog.Attr{
		slog.Int64("seq", ev.Seq),
		slog.String("kind", string(ev.Kind)),
		slog.Time("at", ev.At),
	}
	if ev.UserID != "" {
		attrs = append(attrs, slog.String("user_id", ev.UserID))
	}
	if ev.PostID != "" {
		attrs = append(attrs, slog.String("post_id", ev.PostID))
	}
	if ev.BattleID != "" {
		attrs = append(attrs, slog.String("battle_id", ev.BattleID))
	}
	if ev.SavedID != "" {
		attrs = append(attrs, slog.String("saved_id", ev.SavedID))
	}
	for _, k := range sortedKeys(ev.Details) {
		attrs = append(attrs, slog.String(k, ev.Details[k]))
	}
	l.Logger.LogAttrs(ctx, l.Level, "event", attrs...)
	return nil
}

// Redis publishes each event as JSON on a pub/sub channel.
type Redis struct {
	client  *redis.Client
	channel string
}

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "blueghost.events"

// NewRedis publishes on channel using client.
func NewRedis(client *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel}
}

// Notify implements Notifier.
func (r *Redis) Notify(ctx context.Context, ev model.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.WithContext(ctx).Publish(r.channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return nil
}

// Recorder keeps events in memory. Used by tests and the scenario harness.
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind model.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Multi fans an event out to every sink. All sinks are tried; their
// errors are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, ev model.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
