// Package main provides the cypherkit CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orneryd/cypherkit/pkg/config"
	"github.com/orneryd/cypherkit/pkg/cypher"
	"github.com/orneryd/cypherkit/pkg/entity"
	"github.com/orneryd/cypherkit/pkg/graph"
	"github.com/orneryd/cypherkit/pkg/graphsync"
	"github.com/orneryd/cypherkit/pkg/logging"
	"github.com/orneryd/cypherkit/pkg/outbox"
	"github.com/orneryd/cypherkit/pkg/schema"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(entity.NewRegistry()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Entities registered in reg take part in
// "schema update".
func newRootCmd(reg *entity.Registry) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cypherkit",
		Short: "cypherkit - Cypher statement builder and graph sync tools",
		Long: `cypherkit builds Cypher statements and keeps a Neo4j compatible
graph in step with application entities.

Commands:
  • schema update   drop and recreate declared constraints and indexes
  • render          print index and constraint statements
  • outbox          inspect and replay statements that could not be delivered`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", getEnvStr("CYPHERKIT_CONFIG", config.FindConfigFile()), "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cypherkit v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	// Schema commands
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage graph constraints and indexes",
	}
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Drop and recreate every declared constraint and index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaUpdate(cmd, reg)
		},
	}
	updateCmd.Flags().Bool("dry-run", getEnvBool("CYPHERKIT_DRY_RUN", false), "Print the statements without connecting")
	schemaCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(schemaCmd)

	// Render command
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Print index or constraint statements",
		Long: `Print index or constraint statements without a database.

Example:
  cypherkit render --constraint City.id --index City.name --drop`,
		RunE: runRender,
	}
	renderCmd.Flags().StringSlice("constraint", nil, "Uniqueness constraint as Label.property (repeatable)")
	renderCmd.Flags().StringSlice("index", nil, "Index as Label.property (repeatable)")
	renderCmd.Flags().Bool("drop", false, "Render DROP instead of CREATE")
	rootCmd.AddCommand(renderCmd)

	// Outbox commands
	outboxCmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay undelivered statements",
	}
	outboxCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List queued statements, oldest first",
		RunE:  runOutboxList,
	})
	outboxCmd.AddCommand(&cobra.Command{
		Use:   "replay",
		Short: "Send queued statements, stopping at the first failure",
		RunE:  runOutboxReplay,
	})
	rootCmd.AddCommand(outboxCmd)

	return rootCmd
}

func runSchemaUpdate(cmd *cobra.Command, reg *entity.Registry) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	targets := schema.Plan(schema.FromConfig(cfg.Schema), schema.FromRegistry(reg))
	if len(targets) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no constraints or indexes declared")
		return nil
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		report, err := schema.DryRun(targets)
		if err != nil {
			return err
		}
		printReport(cmd, report)
		return nil
	}

	client, err := connect(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	syncer := schema.NewSyncer(client, logger, cfg.Schema.Concurrency)
	report, err := syncer.Update(cmd.Context(), targets)
	printReport(cmd, report)
	if err != nil {
		return fmt.Errorf("schema update failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "graph schema successfully updated")
	return nil
}

func printReport(cmd *cobra.Command, report schema.Report) {
	out := cmd.OutOrStdout()
	for _, q := range report.Dropped {
		fmt.Fprintf(out, "- %s\n", q)
	}
	for _, q := range report.Created {
		fmt.Fprintf(out, "+ %s\n", q)
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	constraints, _ := cmd.Flags().GetStringSlice("constraint")
	indexes, _ := cmd.Flags().GetStringSlice("index")
	drop, _ := cmd.Flags().GetBool("drop")

	if len(constraints) == 0 && len(indexes) == 0 {
		return fmt.Errorf("nothing to render: pass --constraint or --index")
	}

	var stmts []*cypher.SchemaStatement
	for _, s := range constraints {
		t, err := config.ParseSchemaTarget(s)
		if err != nil {
			return err
		}
		if drop {
			stmts = append(stmts, cypher.DropConstraint(t.Label, t.Property))
		} else {
			stmts = append(stmts, cypher.CreateConstraint(t.Label, t.Property))
		}
	}
	for _, s := range indexes {
		t, err := config.ParseSchemaTarget(s)
		if err != nil {
			return err
		}
		if drop {
			stmts = append(stmts, cypher.DropIndex(t.Label, t.Property))
		} else {
			stmts = append(stmts, cypher.CreateIndex(t.Label, t.Property))
		}
	}

	for _, s := range stmts {
		stmt, err := s.Build()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), stmt.Query)
	}
	return nil
}

func runOutboxList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ob, err := openOutbox(cfg, logger)
	if err != nil {
		return err
	}
	defer ob.Close()

	entries, err := ob.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %s  %s\n", e.ID, e.EnqueuedAt.Format("2006-01-02T15:04:05Z07:00"), e.Query)
	}
	fmt.Fprintf(out, "%d queued\n", len(entries))
	return nil
}

func runOutboxReplay(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if !cfg.Outbox.Enabled {
		return errOutboxDisabled
	}

	client, err := connect(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	listener, err := graphsync.Open(client, cfg.Outbox, logger)
	if err != nil {
		return err
	}
	defer listener.Close()

	n, err := listener.Replay(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "%d delivered\n", n)
	return err
}

// setup loads and validates configuration and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("configuration loaded", zap.String("path", path), zap.Stringer("config", cfg))
	return cfg, logger, nil
}

func connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*graph.Client, error) {
	client, err := graph.New(
		graph.ConfigFrom(cfg.Connection, cfg.Logging),
		logger,
		graph.NewMetrics(prometheus.DefaultRegisterer),
	)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

var errOutboxDisabled = errors.New("outbox is disabled, set outbox.enabled or CYPHERKIT_OUTBOX_ENABLED")

func openOutbox(cfg *config.Config, logger *zap.Logger) (*outbox.Outbox, error) {
	if !cfg.Outbox.Enabled {
		return nil, errOutboxDisabled
	}
	return outbox.Open(outbox.Options{Dir: cfg.Outbox.Dir, InMemory: cfg.Outbox.InMemory}, logger)
}

// Environment variable helpers for flag defaults

func getEnvStr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err == nil {
			return b
		}
	}
	return defaultVal
}
