// Package graphsync mirrors entity lifecycle events into the graph.
//
// Each persist or update becomes one MERGE statement keyed by the entity's
// merge key. When the server cannot be reached and an outbox is configured,
// the statement is queued and replayed later instead of failing the caller.
package graphsync

import (
	"context"

	"go.uber.org/zap"

	"github.com/orneryd/cypherkit/pkg/config"
	"github.com/orneryd/cypherkit/pkg/entity"
	"github.com/orneryd/cypherkit/pkg/graph"
	"github.com/orneryd/cypherkit/pkg/logging"
	"github.com/orneryd/cypherkit/pkg/outbox"
)

// mergeAlias is the variable name used in generated MERGE statements.
const mergeAlias = "a"

// Listener reacts to entity lifecycle events.
type Listener struct {
	exec   graph.Executor
	outbox *outbox.Outbox
	logger *zap.Logger

	// ownsOutbox is set when the outbox was opened by Open.
	ownsOutbox bool
}

// NewListener returns a Listener sending through exec. ob may be nil, in
// which case delivery errors are returned to the caller.
func NewListener(exec graph.Executor, ob *outbox.Outbox, logger *zap.Logger) *Listener {
	return &Listener{
		exec:   exec,
		outbox: ob,
		logger: logging.OrNop(logger).Named("graphsync"),
	}
}

// Open builds a Listener from configuration. The outbox is opened only when
// cfg.Enabled is set, and Close releases it.
func Open(exec graph.Executor, cfg config.OutboxConfig, logger *zap.Logger) (*Listener, error) {
	if !cfg.Enabled {
		return NewListener(exec, nil, logger), nil
	}
	ob, err := outbox.Open(outbox.Options{Dir: cfg.Dir, InMemory: cfg.InMemory}, logger)
	if err != nil {
		return nil, err
	}
	l := NewListener(exec, ob, logger)
	l.ownsOutbox = true
	return l, nil
}

// HasOutbox reports whether undelivered statements are queued.
func (l *Listener) HasOutbox() bool {
	return l.outbox != nil
}

// Close releases an outbox opened by Open. An outbox passed to NewListener
// stays open.
func (l *Listener) Close() error {
	if !l.ownsOutbox || l.outbox == nil {
		return nil
	}
	return l.outbox.Close()
}

// PostPersist mirrors a newly stored entity.
func (l *Listener) PostPersist(ctx context.Context, e entity.Entity) error {
	return l.sync(ctx, "persist", e)
}

// PostUpdate mirrors an updated entity.
func (l *Listener) PostUpdate(ctx context.Context, e entity.Entity) error {
	return l.sync(ctx, "update", e)
}

func (l *Listener) sync(ctx context.Context, event string, e entity.Entity) error {
	stmt, err := entity.MergeStatement(mergeAlias, e)
	if err != nil {
		return err
	}

	err = l.exec.Transaction(ctx, stmt)
	if err == nil {
		return nil
	}
	if l.outbox == nil {
		return err
	}

	entry, qerr := l.outbox.Enqueue(stmt)
	if qerr != nil {
		l.logger.Error("could not queue statement",
			zap.String("event", event),
			zap.String("query", stmt.Query),
			zap.NamedError("delivery_error", err),
			zap.Error(qerr))
		return err
	}
	l.logger.Warn("graph unavailable, statement queued",
		zap.String("event", event),
		zap.String("id", entry.ID),
		zap.Error(err))
	return nil
}

// Replay sends queued statements oldest first and returns how many were
// delivered. It stops at the first failure and leaves that entry queued.
func (l *Listener) Replay(ctx context.Context) (int, error) {
	if l.outbox == nil {
		return 0, nil
	}
	n, err := l.outbox.Drain(ctx, func(e outbox.Entry) error {
		return l.exec.Transaction(ctx, e.Statement())
	})
	if n > 0 {
		l.logger.Info("outbox replayed", zap.Int("delivered", n))
	}
	return n, err
}
