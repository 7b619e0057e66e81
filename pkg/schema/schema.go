// Package schema keeps uniqueness constraints and indexes in sync with what
// the application declares.
//
// Every target is dropped (a missing constraint is not an error) and then
// created again, so running Update twice leaves the same schema.
package schema

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orneryd/cypherkit/pkg/config"
	"github.com/orneryd/cypherkit/pkg/cypher"
	"github.com/orneryd/cypherkit/pkg/entity"
	"github.com/orneryd/cypherkit/pkg/graph"
	"github.com/orneryd/cypherkit/pkg/logging"
)

// Kind tells constraints and indexes apart.
type Kind string

const (
	KindConstraint Kind = "constraint"
	KindIndex      Kind = "index"
)

// Target is one constraint or index on Label(Property).
type Target struct {
	Kind     Kind
	Label    string
	Property string
}

// String returns e.g. "constraint City.id".
func (t Target) String() string {
	return fmt.Sprintf("%s %s.%s", t.Kind, t.Label, t.Property)
}

// Statements returns the drop and create statements for t.
func (t Target) Statements() (drop, create *cypher.SchemaStatement) {
	if t.Kind == KindIndex {
		return cypher.DropIndex(t.Label, t.Property), cypher.CreateIndex(t.Label, t.Property)
	}
	return cypher.DropConstraint(t.Label, t.Property), cypher.CreateConstraint(t.Label, t.Property)
}

// FromRegistry collects targets declared by registered entities. Constraints
// and indexes are placed on the entity's first label.
func FromRegistry(reg *entity.Registry) []Target {
	var targets []Target
	for _, r := range reg.All() {
		labels := r.Prototype.GraphLabels()
		if len(labels) == 0 {
			continue
		}
		label := cypher.NormalizeLabels(labels[0])
		if c, ok := r.Prototype.(entity.Constrained); ok {
			for _, prop := range c.GraphConstraints() {
				targets = append(targets, Target{Kind: KindConstraint, Label: label, Property: prop})
			}
		}
		if ix, ok := r.Prototype.(entity.Indexed); ok {
			for _, prop := range ix.GraphIndexes() {
				targets = append(targets, Target{Kind: KindIndex, Label: label, Property: prop})
			}
		}
	}
	return targets
}

// FromConfig collects the targets listed in configuration.
func FromConfig(cfg config.SchemaConfig) []Target {
	targets := make([]Target, 0, len(cfg.Constraints)+len(cfg.Indexes))
	for _, c := range cfg.Constraints {
		targets = append(targets, Target{Kind: KindConstraint, Label: cypher.NormalizeLabels(c.Label), Property: c.Property})
	}
	for _, ix := range cfg.Indexes {
		targets = append(targets, Target{Kind: KindIndex, Label: cypher.NormalizeLabels(ix.Label), Property: ix.Property})
	}
	return targets
}

// Plan merges target lists, dropping duplicates and keeping first-seen order.
func Plan(sources ...[]Target) []Target {
	seen := make(map[Target]bool)
	var out []Target
	for _, src := range sources {
		for _, t := range src {
			if seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Report lists the statements that were run, sorted.
type Report struct {
	Dropped []string
	Created []string
}

func (r *Report) sort() {
	sort.Strings(r.Dropped)
	sort.Strings(r.Created)
}

// Syncer applies targets through an executor.
type Syncer struct {
	exec        graph.Executor
	logger      *zap.Logger
	concurrency int
}

// NewSyncer returns a Syncer that works on up to concurrency labels at once.
func NewSyncer(exec graph.Executor, logger *zap.Logger, concurrency int) *Syncer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Syncer{
		exec:        exec,
		logger:      logging.OrNop(logger).Named("schema"),
		concurrency: concurrency,
	}
}

// DryRun renders every statement Update would run without sending anything.
func DryRun(targets []Target) (Report, error) {
	var report Report
	for _, t := range targets {
		drop, create := t.Statements()
		d, err := drop.Build()
		if err != nil {
			return Report{}, fmt.Errorf("%s: %w", t, err)
		}
		c, err := create.Build()
		if err != nil {
			return Report{}, fmt.Errorf("%s: %w", t, err)
		}
		report.Dropped = append(report.Dropped, d.Query)
		report.Created = append(report.Created, c.Query)
	}
	report.sort()
	return report, nil
}

// Update drops and recreates every target. Drop failures are logged and
// ignored; the first create failure cancels the remaining work and is
// returned. Labels are processed concurrently, targets of one label in order.
func (s *Syncer) Update(ctx context.Context, targets []Target) (Report, error) {
	// Render everything up front so a bad target fails before any I/O.
	if _, err := DryRun(targets); err != nil {
		return Report{}, err
	}

	byLabel := make(map[string][]Target)
	var labels []string
	for _, t := range targets {
		if _, ok := byLabel[t.Label]; !ok {
			labels = append(labels, t.Label)
		}
		byLabel[t.Label] = append(byLabel[t.Label], t)
	}

	var (
		mu     sync.Mutex
		report Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, label := range labels {
		label := label
		g.Go(func() error {
			for _, t := range byLabel[label] {
				dropped, created, err := s.apply(gctx, t)
				mu.Lock()
				if dropped != "" {
					report.Dropped = append(report.Dropped, dropped)
				}
				if created != "" {
					report.Created = append(report.Created, created)
				}
				mu.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	report.sort()
	if err != nil {
		return report, err
	}
	s.logger.Info("schema updated",
		zap.Int("targets", len(targets)),
		zap.Int("labels", len(labels)))
	return report, nil
}

func (s *Syncer) apply(ctx context.Context, t Target) (dropped, created string, err error) {
	drop, create := t.Statements()

	if _, err := s.exec.Cypher(ctx, drop); err != nil {
		s.logger.Debug("drop skipped", zap.Stringer("target", t), zap.Error(err))
	} else {
		stmt, _ := drop.Build()
		dropped = stmt.Query
	}

	if _, err := s.exec.Cypher(ctx, create); err != nil {
		return dropped, "", fmt.Errorf("%s: %w", t, err)
	}
	stmt, _ := create.Build()
	return dropped, stmt.Query, nil
}
