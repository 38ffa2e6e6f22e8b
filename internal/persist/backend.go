package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/PiperEve/BlueGhost/internal/clock"
	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/rewind"
)

// Backend stores named documents.
type Backend interface {
	// Load returns the document bytes, or ErrNoDocument.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save replaces the document.
	Save(ctx context.Context, name string, data []byte) error

	Close() error
}

// Snapshot is the full engine state.
type Snapshot struct {
	Content model.ContentState
	Rewind  rewind.State
}

// LoadSnapshot reads both documents. Missing documents yield empty state;
// found reports whether either existed.
func LoadSnapshot(ctx context.Context, b Backend) (snap Snapshot, found bool, err error) {
	snap = Snapshot{Content: model.NewContentState(), Rewind: rewind.NewState()}

	raw, err := b.Load(ctx, DocContent)
	switch {
	case errors.Is(err, ErrNoDocument):
	case err != nil:
		return Snapshot{}, false, fmt.Errorf("load content: %w", err)
	default:
		if snap.Content, err = DecodeContent(raw); err != nil {
			return Snapshot{}, false, err
		}
		found = true
	}

	raw, err = b.Load(ctx, DocRewind)
	switch {
	case errors.Is(err, ErrNoDocument):
	case err != nil:
		return Snapshot{}, false, fmt.Errorf("load rewind: %w", err)
	default:
		if snap.Rewind, err = DecodeRewind(raw); err != nil {
			return Snapshot{}, false, err
		}
		found = true
	}
	return snap, found, nil
}

// SaveContent encodes and stores the content document.
func SaveContent(ctx context.Context, b Backend, s model.ContentState) error {
	raw, err := EncodeContent(s)
	if err != nil {
		return err
	}
	if err := b.Save(ctx, DocContent, raw); err != nil {
		return fmt.Errorf("save content: %w", err)
	}
	return nil
}

// SaveRewind encodes and stores the rewind document.
func SaveRewind(ctx context.Context, b Backend, s rewind.State) error {
	raw, err := EncodeRewind(s)
	if err != nil {
		return err
	}
	if err := b.Save(ctx, DocRewind, raw); err != nil {
		return fmt.Errorf("save rewind: %w", err)
	}
	return nil
}

// Options selects and configures a backend.
type Options struct {
	// Driver is one of memory, sqlite, redis, postgres.
	Driver string

	// Path is the SQLite database file.
	Path string

	// DSN is the Postgres connection string.
	DSN string

	// RedisAddr is host:port of the Redis server.
	RedisAddr string

	// KeyPrefix namespaces Redis keys and Postgres rows.
	KeyPrefix string

	// Clock stamps SQLite rows. Defaults to the system clock.
	Clock clock.Clock
}

// Open constructs the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		if opts.Path == "" {
			return nil, fmt.Errorf("open sqlite: path is required")
		}
		return OpenSQLite(opts.Path, opts.Clock)
	case "redis":
		return OpenRedis(ctx, opts.RedisAddr, opts.KeyPrefix)
	case "postgres":
		return OpenPostgres(ctx, opts.DSN, opts.KeyPrefix)
	}
	return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}
