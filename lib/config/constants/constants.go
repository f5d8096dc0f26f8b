package constants

import "time"

const (
	// DefaultSchema is the medallion "bronze" layer every dataset lands in unless configured otherwise.
	DefaultSchema = "bronze"

	// UploadedAtColumn is appended to every destination table and stamped on each promote.
	UploadedAtColumn = "uploaded_at"

	// StagingMarker is part of every staging table name, [DropStaging] refuses to drop anything without it.
	StagingMarker = "staging"
	// StagingNamePattern matches the tail of a staging table name: marker, 8 hex char suffix and a 10 digit expiry.
	StagingNamePattern = "_" + StagingMarker + "_([0-9a-f]{8})_([0-9]{10})$"
	StagingSuffixLength = 8

	DefaultStagingTTL   = 24 * time.Hour
	DefaultChunkSize    = 5000
	DefaultSweepCronExp = "@every 1h"

	DefaultBlockingThresholdPercent = 10.0
	DefaultMaxExamples              = 3
	MaxExampleLength                = 100
	DefaultSchemaMismatchThresholdPercent = 50.0
)

// ExporterKind is used for the Telemetry package
type ExporterKind string

const (
	Datadog ExporterKind = "datadog"
)
