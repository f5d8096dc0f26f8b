package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/artie-labs/ingest/lib/config/constants"
	"github.com/artie-labs/ingest/lib/sql"
)

var (
	stagingNameRegex   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*` + constants.StagingNamePattern)
	stagingSuffixRegex = regexp.MustCompile(fmt.Sprintf(`^[0-9a-f]{%d}$`, constants.StagingSuffixLength))
)

// "_staging_" + suffix + "_" + a 10 digit unix timestamp.
var stagingNameOverhead = len(constants.StagingMarker) + constants.StagingSuffixLength + 13

// StagingTableID returns `<table>_staging_<suffix>_<expiryUnix>` in the same schema as [tableID].
// The table part is shortened when needed so that the name stays within [sql.MaxIdentifierLength].
func StagingTableID(tableID sql.TableIdentifier, suffix string, expiresAt time.Time) (sql.TableIdentifier, error) {
	if !stagingSuffixRegex.MatchString(suffix) {
		return nil, fmt.Errorf("%w: staging suffix %q must be %d lowercase hex characters", sql.ErrInvalidIdentifier, suffix, constants.StagingSuffixLength)
	}

	if expiresAt.Unix() < 1_000_000_000 || expiresAt.Unix() > 9_999_999_999 {
		return nil, fmt.Errorf("staging expiry %s is out of range", expiresAt)
	}

	base := tableID.Table().String()
	if maxBase := sql.MaxIdentifierLength - stagingNameOverhead; len(base) > maxBase {
		base = base[:maxBase]
	}

	name, err := sql.Sanitize(fmt.Sprintf("%s_%s_%s_%d", base, constants.StagingMarker, suffix, expiresAt.Unix()))
	if err != nil {
		return nil, fmt.Errorf("failed to build staging table name: %w", err)
	}

	return tableID.WithTable(name), nil
}

// ParseStagingExpiry returns the expiry encoded in a staging table name.
func ParseStagingExpiry(tableName string) (time.Time, bool) {
	match := stagingNameRegex.FindStringSubmatch(tableName)
	if match == nil {
		return time.Time{}, false
	}

	unix, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.Unix(unix, 0), true
}

// IsStagingTable reports whether a table name was produced by [StagingTableID].
func IsStagingTable(tableName string) bool {
	_, ok := ParseStagingExpiry(tableName)
	return ok
}

// ShouldSweep reports whether a staging table has outlived its retention.
func ShouldSweep(tableName string, now time.Time) bool {
	expiresAt, ok := ParseStagingExpiry(tableName)
	return ok && now.After(expiresAt)
}
