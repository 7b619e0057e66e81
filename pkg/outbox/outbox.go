// Package outbox keeps statements that could not be delivered to the graph
// server so they can be replayed later, oldest first.
//
// Entries are stored in BadgerDB under time-ordered UUIDv7 keys, so key order
// is enqueue order.
package outbox

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orneryd/cypherkit/pkg/cypher"
	"github.com/orneryd/cypherkit/pkg/logging"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("outbox closed")
	// ErrEmptyStatement is returned when enqueuing a nil or empty statement.
	ErrEmptyStatement = errors.New("outbox: empty statement")
)

var entryPrefix = []byte("outbox:")

func init() {
	// Parameter values travel as interfaces.
	gob.Register([]any{})
	gob.Register(map[string]any{})
	gob.Register(time.Time{})
}

// Entry is one queued statement.
type Entry struct {
	ID         string
	Query      string
	Params     map[string]any
	EnqueuedAt time.Time
}

// Statement returns the entry as a statement ready to send.
func (e Entry) Statement() *cypher.Statement {
	return cypher.Raw(e.Query, e.Params)
}

// Options configures Open.
type Options struct {
	// Dir is the BadgerDB directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps the queue in memory only.
	InMemory bool
}

// Outbox is a durable FIFO of statements. It is safe for concurrent use.
type Outbox struct {
	db     *badger.DB
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	// drainMu serialises Drain so two replays never send the same entry.
	drainMu sync.Mutex
}

// Open opens or creates the outbox.
func Open(opts Options, logger *zap.Logger) (*Outbox, error) {
	logger = logging.OrNop(logger).Named("outbox")

	badgerOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else if opts.Dir == "" {
		return nil, fmt.Errorf("outbox directory is required")
	}
	badgerOpts = badgerOpts.
		WithLogger(badgerLogger{logger.Sugar()}).
		WithSyncWrites(!opts.InMemory).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(32 << 20).
		WithNumMemtables(1)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open outbox: %w", err)
	}
	return &Outbox{db: db, logger: logger}, nil
}

// Close closes the underlying store.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	return o.db.Close()
}

// Enqueue appends stmt to the queue.
func (o *Outbox) Enqueue(stmt *cypher.Statement) (Entry, error) {
	if stmt == nil || stmt.Query == "" {
		return Entry{}, ErrEmptyStatement
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return Entry{}, ErrClosed
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to generate entry id: %w", err)
	}
	entry := Entry{
		ID:         id.String(),
		Query:      stmt.Query,
		Params:     stmt.Params,
		EnqueuedAt: time.Now().UTC(),
	}

	data, err := encodeEntry(entry)
	if err != nil {
		return Entry{}, err
	}
	if err := o.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(id), data)
	}); err != nil {
		return Entry{}, fmt.Errorf("failed to enqueue: %w", err)
	}

	o.logger.Debug("statement queued", zap.String("id", entry.ID), zap.String("query", entry.Query))
	return entry, nil
}

// List returns every entry, oldest first.
func (o *Outbox) List() ([]Entry, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return nil, ErrClosed
	}

	var entries []Entry
	err := o.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(entryPrefix); it.ValidForPrefix(entryPrefix); it.Next() {
			var entry Entry
			if err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				entry, decodeErr = decodeEntry(val)
				return decodeErr
			}); err != nil {
				return fmt.Errorf("entry %x: %w", it.Item().Key(), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Len returns the number of queued entries.
func (o *Outbox) Len() (int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return 0, ErrClosed
	}

	n := 0
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(entryPrefix); it.ValidForPrefix(entryPrefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Delete removes an entry. Deleting an unknown id is not an error.
func (o *Outbox) Delete(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid entry id %q: %w", id, err)
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrClosed
	}

	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(parsed))
	})
}

// Drain calls fn for each entry, oldest first, deleting each one fn accepts.
// It stops at the first error, leaving that entry and every later one queued,
// and returns how many entries were delivered.
func (o *Outbox) Drain(ctx context.Context, fn func(Entry) error) (int, error) {
	o.drainMu.Lock()
	defer o.drainMu.Unlock()

	entries, err := o.List()
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := fn(entry); err != nil {
			o.logger.Warn("replay stopped",
				zap.String("id", entry.ID),
				zap.Int("delivered", delivered),
				zap.Int("remaining", len(entries)-delivered),
				zap.Error(err))
			return delivered, fmt.Errorf("entry %s: %w", entry.ID, err)
		}
		if err := o.Delete(entry.ID); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

func entryKey(id uuid.UUID) []byte {
	key := make([]byte, 0, len(entryPrefix)+len(id))
	key = append(key, entryPrefix...)
	return append(key, id[:]...)
}

// encodeEntry serializes an Entry with gob.
func encodeEntry(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeEntry deserializes an Entry from gob.
func decodeEntry(data []byte) (Entry, error) {
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return Entry{}, fmt.Errorf("failed to decode entry: %w", err)
	}
	return e, nil
}

// badgerLogger routes badger's internal logging through zap. Info and debug
// chatter from compaction is demoted to debug.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...any)   { l.s.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...any) { l.s.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...any)    { l.s.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...any)   { l.s.Debugf(format, args...) }
