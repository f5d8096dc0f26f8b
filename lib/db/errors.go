package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"slices"
	"strings"
	"syscall"

	mssql "github.com/microsoft/go-mssqldb"
)

var (
	// ErrConnectionUnavailable is returned when the server cannot be reached.
	ErrConnectionUnavailable = errors.New("connection unavailable")
	// ErrPoolExhausted is returned when no connection frees up before the pool timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
)

// Server errors worth another attempt: the database is still starting, failing over or throttling logins.
var transientServerErrors = map[int32]bool{
	4060:  true,
	40197: true,
	40501: true,
	40613: true,
	49918: true,
	49919: true,
	49920: true,
}

// The driver flattens some socket errors into the message.
var flattenedNetworkErrors = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"i/o timeout",
}

func retryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var serverErr mssql.Error
	if errors.As(err, &serverErr) {
		return transientServerErrors[serverErr.Number]
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return slices.ContainsFunc(flattenedNetworkErrors, func(s string) bool {
		return strings.Contains(msg, s)
	})
}
