package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/logger"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/telemetry/metrics"
	"github.com/artie-labs/ingest/lib/telemetry/metrics/base"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

// ConnProvider hands out pooled connections, [*db.Store] satisfies it.
type ConnProvider interface {
	WithQuerier(ctx context.Context, fn func(q db.Querier) error) error
	Concurrency() int
}

// Indexer builds helper indexes on the staging table for the duration of [fn].
type Indexer interface {
	WithTempIndexes(ctx context.Context, tableID sql.TableIdentifier, cols []sql.SafeIdentifier, fn func(ctx context.Context) error) error
}

type Request struct {
	Staging     sql.TableIdentifier
	Destination sql.TableIdentifier
	Columns     []columns.ColumnSpec
	Options     Options
}

type OrchestratorOption func(o *Orchestrator)

func WithIndexer(indexer Indexer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.indexer = indexer
	}
}

func WithValidators(validators ...Validator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.validators = validators
	}
}

func WithOrchestratorMetrics(client base.Client) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = client
	}
}

// WithStateObserver is called on every state transition.
func WithStateObserver(fn func(State)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// Orchestrator runs every validator against a staging table and folds the results into a [Verdict].
type Orchestrator struct {
	provider   ConnProvider
	dialect    sql.Dialect
	indexer    Indexer
	schema     SchemaValidator
	validators []Validator
	metrics    base.Client
	observer   func(State)
}

func NewOrchestrator(provider ConnProvider, dialect sql.Dialect, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		dialect:  dialect,
		schema:   NewSchemaValidator(dialect),
		validators: []Validator{
			NewRequiredValidator(dialect),
			NewNumericValidator(dialect),
			NewDateValidator(dialect),
			NewStringValidator(dialect),
			NewBooleanValidator(dialect),
		},
		metrics: metrics.NullMetricsProvider{},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

type runState struct {
	logger   *slog.Logger
	observer func(State)
	current  State
}

func (r *runState) transition(state State) {
	r.logger.Debug("Validation state changed", slog.String("from", string(r.current)), slog.String("to", string(state)))
	r.current = state
	if r.observer != nil {
		r.observer(state)
	}
}

// Run validates the staging table. Data problems come back in the [Verdict], only infrastructure failures
// and cancellation are returned as errors.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Verdict, error) {
	start := time.Now()
	run := &runState{
		logger:   logger.FromContext(ctx).With(slog.String("staging", req.Staging.FullyQualifiedName())),
		observer: o.observer,
	}
	run.transition(Pending)

	var totalRows int64
	err := o.provider.WithQuerier(ctx, func(q db.Querier) error {
		var countErr error
		totalRows, countErr = aggregator{dialect: o.dialect}.count(ctx, q, req.Staging, "")
		return countErr
	})
	if err != nil {
		return Verdict{State: Failed}, fmt.Errorf("failed to count staging rows: %w", err)
	}

	if totalRows == 0 {
		verdict := NewVerdict(0, []Issue{{
			Class:    NoRows,
			Severity: Blocking,
			Message:  "the upload has no rows",
		}})
		return o.finish(run, verdict, start), nil
	}

	target := Target{
		Table:       req.Staging,
		Destination: req.Destination,
		Columns:     req.Columns,
		TotalRows:   totalRows,
		Options:     req.Options,
	}

	// Schema goes first so missing columns are not type checked.
	issues := o.checkSchema(ctx, target)
	missing := MissingColumns(issues)

	var present []columns.ColumnSpec
	var indexCols []sql.SafeIdentifier
	for _, spec := range req.Columns {
		if missing[strings.ToLower(spec.Name)] {
			continue
		}

		identifier, err := spec.Identifier()
		if err != nil {
			return Verdict{State: Failed}, err
		}

		present = append(present, spec)
		indexCols = append(indexCols, identifier)
	}

	validate := func(ctx context.Context) error {
		run.transition(Validating)
		found, err := o.fanOut(ctx, target, present)
		issues = append(issues, found...)
		return err
	}

	if o.indexer != nil {
		run.transition(Indexing)
		err = o.indexer.WithTempIndexes(ctx, req.Staging, indexCols, validate)
	} else {
		err = validate(ctx)
	}

	if err != nil {
		return Verdict{State: Failed, TotalRows: totalRows}, err
	}

	run.transition(Aggregating)
	issues = append(issues, InferTypeMismatches(issues, req.Options.schemaMismatchThreshold())...)
	return o.finish(run, NewVerdict(totalRows, issues), start), nil
}

func (o *Orchestrator) finish(run *runState, verdict Verdict, start time.Time) Verdict {
	verdict.Duration = time.Since(start)
	run.transition(verdict.State)

	tags := map[string]string{"state": string(verdict.State)}
	o.metrics.Timing("validation.duration", verdict.Duration, tags)
	o.metrics.Count("validation.issues", int64(len(verdict.Issues)), tags)
	o.metrics.Count("validation.warnings", int64(len(verdict.Warnings)), tags)

	run.logger.Info("Validation finished",
		slog.String("state", string(verdict.State)),
		slog.Int64("rows", verdict.TotalRows),
		slog.Int("blocking", len(verdict.Issues)),
		slog.Int("advisory", len(verdict.Warnings)),
		slog.Duration("duration", verdict.Duration),
	)
	return verdict
}

func (o *Orchestrator) checkSchema(ctx context.Context, target Target) []Issue {
	var issues []Issue
	err := o.provider.WithQuerier(ctx, func(q db.Querier) error {
		var err error
		issues, err = o.schema.Validate(ctx, q, target)
		return err
	})
	if err != nil {
		return []Issue{validatorError(o.schema.Name(), "", err)}
	}
	return issues
}

// fanOut runs one task per validator and column, never more at once than the pool can serve.
func (o *Orchestrator) fanOut(ctx context.Context, target Target, specs []columns.ColumnSpec) ([]Issue, error) {
	var mu sync.Mutex
	var issues []Issue
	collect := func(found ...Issue) {
		mu.Lock()
		defer mu.Unlock()
		issues = append(issues, found...)
	}

	var group errgroup.Group
	group.SetLimit(max(o.provider.Concurrency(), 1))
schedule:
	for _, validator := range o.validators {
		for _, spec := range specs {
			if !validator.Applies(spec) {
				continue
			}

			if ctx.Err() != nil {
				break schedule
			}

			group.Go(func() error {
				found, err := o.runTask(ctx, validator, target.withColumn(spec))
				if err != nil {
					collect(validatorError(validator.Name(), spec.Name, err))
					return nil
				}
				collect(found...)
				return nil
			})
		}
	}

	// Tasks never fail the group, errors are turned into issues.
	_ = group.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return issues, nil
}

func (o *Orchestrator) runTask(ctx context.Context, validator Validator, target Target) (issues []Issue, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validator panicked: %v", r)
		}
	}()

	err = o.provider.WithQuerier(ctx, func(q db.Querier) error {
		var validateErr error
		issues, validateErr = validator.Validate(ctx, q, target)
		return validateErr
	})
	return issues, err
}

func validatorError(validator, column string, err error) Issue {
	return Issue{
		Column:    column,
		Class:     ValidatorError,
		Severity:  Blocking,
		Message:   err.Error(),
		Validator: validator,
	}
}
