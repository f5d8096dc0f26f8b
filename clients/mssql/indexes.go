package mssql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/artie-labs/ingest/lib/logger"
	"github.com/artie-labs/ingest/lib/sql"
)

// TempIndexName is deterministic per table and column so a retried run reuses the same name.
func TempIndexName(tableID sql.TableIdentifier, column sql.SafeIdentifier) sql.SafeIdentifier {
	return sql.MustSanitize(fmt.Sprintf("ix_tmp_%016x", xxh3.HashString(tableID.FullyQualifiedName()+"."+column.String())))
}

// IndexHandle owns the temporary indexes built for a validation run.
type IndexHandle struct {
	store   *Store
	tableID sql.TableIdentifier
	names   []sql.SafeIdentifier

	once sync.Once
	err  error
}

func (h *IndexHandle) Names() []sql.SafeIdentifier {
	if h == nil {
		return nil
	}
	return h.names
}

// Release drops every index that was created, only the first call does any work.
func (h *IndexHandle) Release(ctx context.Context) error {
	if h == nil {
		return nil
	}

	h.once.Do(func() {
		var errs []error
		for _, name := range h.names {
			if err := h.store.exec(ctx, h.store.dialect().BuildDropIndexQuery(name, h.tableID)); err != nil {
				errs = append(errs, fmt.Errorf("failed to drop index %q: %w", name.String(), err))
			}
		}
		h.err = errors.Join(errs...)
		if h.err != nil {
			logger.FromContext(ctx).Warn("Failed to drop temporary indexes", slog.Any("err", h.err))
		}
	})
	return h.err
}

// CreateTempIndexes indexes the staging columns narrow enough to be index keys. A column that cannot be
// indexed is logged and skipped, validation still works without it, only slower.
func (s *Store) CreateTempIndexes(ctx context.Context, tableID sql.TableIdentifier, cols []sql.SafeIdentifier) (*IndexHandle, error) {
	handle := &IndexHandle{store: s, tableID: tableID}
	if len(cols) == 0 {
		return handle, nil
	}

	existing, err := s.DescribeTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With(slog.String("staging", tableID.FullyQualifiedName()))
	for _, col := range cols {
		current, ok := existing.GetColumn(col.String())
		if !ok {
			continue
		}

		if width := current.KindDetails.OptionalStringPrecision; width == nil || *width > IndexableWidth {
			log.Debug("Column is too wide to index", slog.String("column", col.String()))
			continue
		}

		if err = ctx.Err(); err != nil {
			return handle, err
		}

		name := TempIndexName(tableID, col)
		if err = s.exec(ctx, s.dialect().BuildCreateIndexQuery(name, tableID, col)); err != nil {
			log.Warn("Failed to create temporary index, skipping", slog.String("column", col.String()), slog.Any("err", err))
			continue
		}
		handle.names = append(handle.names, name)
	}

	s.metrics.Count("validation.indexes", int64(len(handle.names)), map[string]string{"table": tableID.Table().String()})
	return handle, nil
}

// WithTempIndexes runs [fn] with temporary indexes in place and drops them afterwards, even when [fn] fails
// or [ctx] is cancelled.
func (s *Store) WithTempIndexes(ctx context.Context, tableID sql.TableIdentifier, cols []sql.SafeIdentifier, fn func(ctx context.Context) error) error {
	handle, err := s.CreateTempIndexes(ctx, tableID, cols)
	defer func() {
		if releaseErr := handle.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			slog.Warn("Failed to release temporary indexes", slog.Any("err", releaseErr))
		}
	}()
	if err != nil {
		return err
	}

	return fn(ctx)
}
