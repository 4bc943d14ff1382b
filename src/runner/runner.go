package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"schemabench/src/bench"
	"schemabench/src/directors"
	"schemabench/src/engine"
	"schemabench/src/fakedata"
	"schemabench/src/settings"
)

// Operation names as they appear in reports.
const (
	OperationGenerate = "Generate"
	OperationQuery1   = "Query 1"
	OperationQuery2   = "Query 2"
	OperationQuery3   = "Query 3"
	OperationQuery4   = "Query 4"
)

// Runner owns the process-wide resources of a benchmark session: the logger,
// the store connection and the schema variants built on top of them.
type Runner struct {
	config   *settings.Arguments
	store    engine.DocumentStore
	variants *directors.VariantManager
	logger   *zap.SugaredLogger
	base     *zap.Logger
	closed   bool
}

// InitRunner builds the logger, connects the store and creates the variants.
// The caller must Close the runner on every exit path.
func InitRunner(ctx context.Context, config *settings.Arguments) (*Runner, error) {
	logger, err := buildLogger(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Create a sugared logger for easier API
	sugar := logger.Sugar()
	zap.ReplaceGlobals(logger)

	provider, err := fakedata.NewProvider(config.Languages, config.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", settings.ErrConfiguration, err)
	}

	store, err := engine.NewStore(ctx, config, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to create document store: %w", err)
	}

	r := newRunner(config, store, provider, sugar)
	r.base = logger
	return r, nil
}

func newRunner(config *settings.Arguments, store engine.DocumentStore, provider fakedata.Provider, logger *zap.SugaredLogger) *Runner {
	return &Runner{
		config:   config,
		store:    store,
		variants: directors.NewVariantManager(store, provider, config, logger),
		logger:   logger,
	}
}

// buildLogger writes to stderr so benchmark output on stdout stays readable.
func buildLogger(config *settings.Arguments) (*zap.Logger, error) {
	var z zap.Config
	if config.Debug {
		// Development configuration with more verbose output
		z = zap.NewDevelopmentConfig()
	} else {
		z = zap.NewProductionConfig()
	}
	z.OutputPaths = []string{"stderr"}
	z.ErrorOutputPaths = []string{"stderr"}
	return z.Build()
}

// Choices lists the variants the runner can benchmark.
func (r *Runner) Choices() []directors.VariantChoice {
	return r.variants.Choices()
}

// Run generates n records with the chosen variant and, when runQueries is
// set, times the four queries one after the other. The report holds every
// measurement taken before an error, if any.
func (r *Runner) Run(ctx context.Context, choice, n int, runQueries bool) (*bench.Report, error) {
	variant, err := r.variants.Variant(choice)
	if err != nil {
		return nil, err
	}

	report := bench.NewReport(variant.Name(), n)
	r.logger.Infow("Starting benchmark run", "variant", variant.Name(), "records", n, "queries", runQueries)

	m, err := bench.Measure(OperationGenerate, func() (bench.Outcome, error) {
		summary, err := variant.Generate(ctx, n)
		return bench.SummaryOutcome(summary.String()), err
	})
	if err != nil {
		return report, err
	}
	report.Add(m)

	if !runQueries {
		return report, nil
	}

	queries := []struct {
		operation string
		fn        func() (bench.Outcome, error)
	}{
		{OperationQuery1, func() (bench.Outcome, error) {
			rows, err := variant.PersonCompanyPairs(ctx)
			return bench.RowsOutcome(rows), err
		}},
		{OperationQuery2, func() (bench.Outcome, error) {
			rows, err := variant.EmployeeCounts(ctx)
			return bench.RowsOutcome(rows), err
		}},
		{OperationQuery3, func() (bench.Outcome, error) {
			result, err := variant.ResetAgesBornBefore1988(ctx)
			return bench.UpdateOutcome(result), err
		}},
		{OperationQuery4, func() (bench.Outcome, error) {
			result, err := variant.RenameAllCompanies(ctx)
			return bench.UpdateOutcome(result), err
		}},
	}
	for _, q := range queries {
		m, err := bench.Measure(q.operation, q.fn)
		if err != nil {
			return report, err
		}
		report.Add(m)
		r.logger.Debugw("Operation finished", "operation", q.operation, "elapsed", m.Elapsed)
	}

	return report, nil
}

// Close releases the store connection and flushes the logger. Calling it
// more than once is a no-op.
func (r *Runner) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.store.Close(ctx)
	if err != nil {
		r.logger.Warnf("Error closing document store: %v", err)
	}
	r.logger.Info("Runner shutdown complete")
	if r.base != nil {
		_ = r.base.Sync()
	}
	return err
}
