package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// WithTx runs [fn] in a transaction that is committed when [fn] succeeds and rolled back otherwise.
func WithTx(ctx context.Context, beginner TxBeginner, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := beginner.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to start tx: %w", err)
	}

	var committed bool
	defer func() {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
				slog.Warn("Unable to rollback", slog.Any("err", rollbackErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	committed = true
	return nil
}

// ExecContextStatements runs [statements] in order, wrapping them in a transaction when there is more than one.
func ExecContextStatements(ctx context.Context, conn interface {
	Execer
	TxBeginner
}, statements []string) ([]sql.Result, error) {
	switch len(statements) {
	case 0:
		return nil, fmt.Errorf("statements is empty")
	case 1:
		slog.Debug("Executing...", slog.String("query", statements[0]))
		result, err := conn.ExecContext(ctx, statements[0])
		if err != nil {
			return nil, fmt.Errorf("failed to execute statement: %w", err)
		}

		return []sql.Result{result}, nil
	default:
		var results []sql.Result
		err := WithTx(ctx, conn, nil, func(tx *sql.Tx) error {
			for _, statement := range statements {
				slog.Debug("Executing...", slog.String("query", statement))
				result, err := tx.ExecContext(ctx, statement)
				if err != nil {
					return fmt.Errorf("failed to execute statement: %q, err: %w", statement, err)
				}

				results = append(results, result)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		return results, nil
	}
}
