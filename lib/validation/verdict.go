package validation

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

type State string

const (
	Pending     State = "pending"
	Indexing    State = "indexing"
	Validating  State = "validating"
	Aggregating State = "aggregating"
	Passed      State = "passed"
	Failed      State = "failed"
)

type Verdict struct {
	CanProceed bool
	// Issues are blocking, Warnings are advisory.
	Issues    []Issue
	Warnings  []Issue
	TotalRows int64
	State     State
	Duration  time.Duration
}

// NewVerdict splits and sorts [issues], the upload can proceed when none of them are blocking.
func NewVerdict(totalRows int64, issues []Issue) Verdict {
	verdict := Verdict{TotalRows: totalRows}
	for _, issue := range issues {
		if issue.IsBlocking() {
			verdict.Issues = append(verdict.Issues, issue)
		} else {
			verdict.Warnings = append(verdict.Warnings, issue)
		}
	}

	sortIssues(verdict.Issues)
	sortIssues(verdict.Warnings)
	verdict.CanProceed = len(verdict.Issues) == 0
	verdict.State = Passed
	if !verdict.CanProceed {
		verdict.State = Failed
	}
	return verdict
}

func sortIssues(issues []Issue) {
	slices.SortStableFunc(issues, func(a, b Issue) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Column), strings.ToLower(b.Column)),
			cmp.Compare(a.Class, b.Class),
			cmp.Compare(a.Validator, b.Validator),
			cmp.Compare(a.Message, b.Message),
		)
	})
}

// AllIssues returns blocking issues followed by warnings.
func (v Verdict) AllIssues() []Issue {
	return append(slices.Clone(v.Issues), v.Warnings...)
}

func (v Verdict) Summary() string {
	if v.CanProceed {
		return fmt.Sprintf("validation passed for %d rows with %d warning(s)", v.TotalRows, len(v.Warnings))
	}

	parts := make([]string, len(v.Issues))
	for i, issue := range v.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("validation failed for %d rows with %d blocking issue(s): %s", v.TotalRows, len(v.Issues), strings.Join(parts, "; "))
}
