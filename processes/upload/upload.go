package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artie-labs/ingest/clients/mssql"
	"github.com/artie-labs/ingest/clients/mssql/dialect"
	"github.com/artie-labs/ingest/lib/config"
	"github.com/artie-labs/ingest/lib/logger"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/tabular"
	"github.com/artie-labs/ingest/lib/telemetry/metrics"
	"github.com/artie-labs/ingest/lib/telemetry/metrics/base"
	"github.com/artie-labs/ingest/lib/typing/columns"
	"github.com/artie-labs/ingest/lib/validation"
)

// Destination is everything an upload needs from the database, [*mssql.Store] satisfies it.
type Destination interface {
	validation.ConnProvider
	validation.Indexer

	Dialect() sql.Dialect
	EnsureSchema(ctx context.Context, schema sql.SafeIdentifier) error
	EnsureTable(ctx context.Context, tableID sql.TableIdentifier, specs []columns.ColumnSpec, extra ...mssql.DestinationColumn) (bool, error)
	CreateStaging(ctx context.Context, tableID sql.TableIdentifier, suffix string, cols []mssql.StagingColumn) (*mssql.StagingTable, error)
	BulkInsert(ctx context.Context, staging *mssql.StagingTable, frame *tabular.Frame) (int64, error)
	Promote(ctx context.Context, args mssql.PromoteArgs) (mssql.PromoteResult, error)
	DropStaging(ctx context.Context, tableID sql.TableIdentifier) error
}

type Request struct {
	Dataset string
	// DatasetKey is written to the dataset key column, it defaults to the dataset name.
	DatasetKey string
	Frame      *tabular.Frame
	// Specs overrides the configured columns of the dataset.
	Specs []columns.ColumnSpec
}

type Result struct {
	Success bool
	Message string
	RunID   string
	Verdict validation.Verdict
	Promote mssql.PromoteResult
	// Staging is set when a failed upload left its staging table behind for inspection.
	Staging *mssql.StagingTable
}

type Option func(u *Uploader)

func WithMetrics(client base.Client) Option {
	return func(u *Uploader) {
		u.metrics = client
	}
}

// WithOrchestratorOptions is applied to the orchestrator of every upload.
func WithOrchestratorOptions(opts ...validation.OrchestratorOption) Option {
	return func(u *Uploader) {
		u.orchestratorOpts = append(u.orchestratorOpts, opts...)
	}
}

// Uploader moves a frame into its destination table through staging, validation and promotion.
type Uploader struct {
	dest             Destination
	cfg              config.Config
	metrics          base.Client
	orchestratorOpts []validation.OrchestratorOption
}

func NewUploader(dest Destination, cfg config.Config, opts ...Option) *Uploader {
	u := &Uploader{dest: dest, cfg: cfg}
	for _, opt := range opts {
		opt(u)
	}

	if u.metrics == nil {
		u.metrics = metrics.NullMetricsProvider{}
	}

	return u
}

type plan struct {
	dataset       config.Dataset
	specs         []columns.ColumnSpec
	destination   dialect.TableIdentifier
	datasetKeyCol *sql.SafeIdentifier
	datasetKey    string
	options       validation.Options
}

func (u *Uploader) plan(req Request) (plan, error) {
	dataset, err := u.cfg.Dataset(req.Dataset)
	if err != nil {
		return plan{}, err
	}

	specs := req.Specs
	if len(specs) == 0 {
		if specs, err = dataset.ColumnSpecs(); err != nil {
			return plan{}, err
		}
	}

	if len(specs) == 0 {
		return plan{}, fmt.Errorf("dataset %q has no columns", dataset.Name)
	}

	destination, err := dialect.ParseTableIdentifier(dataset.Schema, dataset.Table)
	if err != nil {
		return plan{}, fmt.Errorf("dataset %q: %w", dataset.Name, err)
	}

	format, err := dataset.Format()
	if err != nil {
		return plan{}, err
	}

	p := plan{
		dataset:     dataset,
		specs:       specs,
		destination: destination,
		datasetKey:  req.DatasetKey,
		options: validation.Options{
			BlockingThresholdPercent:       u.cfg.Validation.BlockingThreshold(),
			SchemaMismatchThresholdPercent: u.cfg.Validation.SchemaMismatchThreshold(),
			MaxExamples:                    u.cfg.Validation.MaxExamples,
			DateFormat:                     format,
		},
	}

	if dataset.DatasetKeyColumn != "" {
		keyCol, err := sql.Sanitize(dataset.DatasetKeyColumn)
		if err != nil {
			return plan{}, fmt.Errorf("dataset %q key column: %w", dataset.Name, err)
		}
		p.datasetKeyCol = &keyCol
		if p.datasetKey == "" {
			p.datasetKey = dataset.Name
		}
	}

	return p, nil
}

// presentSpecs are the configured columns the frame actually carries, absent optional columns stay NULL.
func presentSpecs(specs []columns.ColumnSpec, frame *tabular.Frame) []columns.ColumnSpec {
	var present []columns.ColumnSpec
	for _, spec := range specs {
		if frame.HasColumn(spec.Name) {
			present = append(present, spec)
		}
	}
	return present
}

// checkedSpecs drops absent optional columns, absent required ones stay so they are reported as missing.
func checkedSpecs(specs []columns.ColumnSpec, frame *tabular.Frame) []columns.ColumnSpec {
	var checked []columns.ColumnSpec
	for _, spec := range specs {
		if spec.Required || frame.HasColumn(spec.Name) {
			checked = append(checked, spec)
		}
	}
	return checked
}

func stagingSuffix(runID string) string {
	return strings.ReplaceAll(runID, "-", "")[:8]
}

// Upload runs one upload end to end. Blocked validation comes back as an unsuccessful [Result],
// errors are reserved for infrastructure failures. Nothing reaches the destination unless validation passes.
func (u *Uploader) Upload(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	result := Result{RunID: runID}
	tags := map[string]string{
		"dataset": req.Dataset,
		"what":    "success",
	}
	defer func() {
		u.metrics.Timing("upload.duration", time.Since(start), tags)
	}()

	log := logger.FromContext(ctx).With(slog.String("run_id", runID), slog.String("dataset", req.Dataset))
	ctx = logger.InjectLoggerIntoCtx(ctx, log)

	p, err := u.plan(req)
	if err != nil {
		tags["what"] = "invalid_request"
		return result, err
	}

	stagingCols, err := mssql.StagingColumnsForFrame(req.Frame)
	if err != nil {
		tags["what"] = "invalid_frame"
		return result, fmt.Errorf("failed to read frame: %w", err)
	}

	if err = u.dest.EnsureSchema(ctx, p.destination.Schema()); err != nil {
		tags["what"] = "ensure_schema_fail"
		return result, err
	}

	staging, err := u.dest.CreateStaging(ctx, p.destination, stagingSuffix(runID), stagingCols)
	if err != nil {
		tags["what"] = "create_staging_fail"
		return result, err
	}

	keepStaging := false
	defer func() {
		if keepStaging {
			return
		}
		// The staging table goes even when the caller gave up.
		if dropErr := u.dest.DropStaging(context.WithoutCancel(ctx), staging.ID); dropErr != nil {
			log.Warn("Failed to drop staging table", slog.String("staging", staging.ID.FullyQualifiedName()), slog.Any("err", dropErr))
		}
	}()

	loaded, err := u.dest.BulkInsert(ctx, staging, req.Frame)
	if err != nil {
		tags["what"] = "bulk_insert_fail"
		return result, err
	}

	log.Info("Loaded staging table", slog.String("staging", staging.ID.FullyQualifiedName()), slog.Int64("rows", loaded))

	opts := append([]validation.OrchestratorOption{validation.WithOrchestratorMetrics(u.metrics)}, u.orchestratorOpts...)
	if u.cfg.Validation.ShouldCreateIndexes() {
		opts = append(opts, validation.WithIndexer(u.dest))
	}

	verdict, err := validation.NewOrchestrator(u.dest, u.dest.Dialect(), opts...).Run(ctx, validation.Request{
		Staging:     staging.ID,
		Destination: p.destination,
		Columns:     checkedSpecs(p.specs, req.Frame),
		Options:     p.options,
	})
	if err != nil {
		tags["what"] = "validation_error"
		return result, fmt.Errorf("failed to validate staging table: %w", err)
	}

	result.Verdict = verdict
	if !verdict.CanProceed {
		tags["what"] = "validation_failed"
		result.Message = verdict.Summary()
		if !u.cfg.Staging.DropOnFailure {
			keepStaging = true
			result.Staging = staging
			log.Info("Keeping staging table for inspection",
				slog.String("staging", staging.ID.FullyQualifiedName()),
				slog.Time("expiresAt", staging.ExpiresAt),
			)
		}
		return result, nil
	}

	present := presentSpecs(p.specs, req.Frame)
	extra := []mssql.DestinationColumn{mssql.UploadedAtColumn()}
	if p.datasetKeyCol != nil {
		extra = append(extra, mssql.DatasetKeyColumn(*p.datasetKeyCol))
	}

	created, err := u.dest.EnsureTable(ctx, p.destination, p.specs, extra...)
	if err != nil {
		tags["what"] = "ensure_table_fail"
		if errors.Is(err, mssql.ErrSchemaConflict) {
			tags["what"] = "schema_conflict"
		}
		return result, err
	}

	if created {
		log.Info("Created destination table", slog.String("table", p.destination.FullyQualifiedName()))
	}

	promoted, err := u.dest.Promote(ctx, mssql.PromoteArgs{
		Staging:          staging,
		Destination:      p.destination,
		Columns:          present,
		DateFormat:       p.options.DateFormat,
		DatasetKeyColumn: p.datasetKeyCol,
		DatasetKey:       p.datasetKey,
		Deduplicate:      p.dataset.Deduplicate,
	})
	if err != nil {
		tags["what"] = "promote_fail"
		return result, err
	}

	u.metrics.Count("upload.rows", promoted.Inserted, tags)
	result.Success = true
	result.Promote = promoted
	result.Message = summarize(p.destination, verdict, promoted)
	log.Info("Upload finished", slog.String("summary", result.Message), slog.Duration("duration", time.Since(start)))
	return result, nil
}

func summarize(tableID sql.TableIdentifier, verdict validation.Verdict, promoted mssql.PromoteResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "uploaded %d of %d rows to %s, replacing %d", promoted.Inserted, verdict.TotalRows, tableID.FullyQualifiedName(), promoted.Deleted)
	if promoted.DuplicatesRemoved > 0 {
		fmt.Fprintf(&sb, ", %d duplicate(s) removed", promoted.DuplicatesRemoved)
	}
	if len(verdict.Warnings) > 0 {
		fmt.Fprintf(&sb, ", %d warning(s)", len(verdict.Warnings))
	}
	return sb.String()
}
