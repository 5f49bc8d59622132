package executor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/researchd/researchd/pkg/evidence"
	"github.com/researchd/researchd/pkg/strategy"
)

var numericTokenPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)

var recencyWindowDays = map[string]int{
	"day":   1,
	"week":  7,
	"month": 30,
	"year":  365,
}

// runQC performs the advisory, non-fatal structure/recency/quorum/
// numeric-contradiction checks. Findings are appended to state.Errors
// (diagnostic entries, not a request-fatal signal) and
// state.Limitations; the run never aborts here.
func (e *Executor) runQC(state *ExecutionState, strat strategy.Strategy) {
	var findings []string

	for _, name := range strat.Finalize.Sections {
		found := false
		for _, sec := range state.Sections {
			if strings.Contains(sec, name) {
				found = true
				break
			}
		}
		if !found {
			findings = append(findings, fmt.Sprintf("missing section: %s", name))
		}
	}

	if len(strat.Finalize.Sections) > 0 && len(state.Citations) < len(strat.Finalize.Sections) {
		findings = append(findings, "insufficient citations")
	}
	if hasDuplicateCitation(state.Citations) {
		findings = append(findings, "duplicate citations")
	}

	if recency, ok := strat.RecencyFilter(); ok {
		if maxDays, known := recencyWindowDays[recency]; known {
			now := e.now()
			for _, ev := range state.Evidence {
				if ev.IsSentinel() || ev.Date == "" {
					continue
				}
				if days, ok := daysOld(ev.Date, now); ok && days > maxDays {
					note := fmt.Sprintf("out of time window (%s): %s", recency, ev.URL)
					findings = append(findings, note)
					state.Limitations = append(state.Limitations, note)
					break
				}
			}
		}
	}

	if minSources, ok := strat.QuorumMinSources(); ok {
		unique := make(map[string]struct{})
		for _, ev := range state.Evidence {
			if ev.IsSentinel() {
				continue
			}
			unique[evidence.Canonical(ev.URL)] = struct{}{}
		}
		if len(unique) < minSources {
			findings = append(findings, "insufficient sources for quorum")
		}
	}

	if len(findings) > 0 {
		state.Errors = append(state.Errors, findings...)
		state.Limitations = append(state.Limitations, "qc-lite detected issues")
	}

	numbers := make(map[string]struct{})
	for _, ev := range state.Evidence {
		for _, tok := range numericTokenPattern.FindAllString(ev.Snippet, -1) {
			numbers[tok] = struct{}{}
		}
	}
	if len(numbers) > 1 {
		state.Limitations = append(state.Limitations, "potential numeric contradiction across sources")
	}
}

func hasDuplicateCitation(citations []string) bool {
	seen := make(map[string]struct{}, len(citations))
	for _, c := range citations {
		if _, ok := seen[c]; ok {
			return true
		}
		seen[c] = struct{}{}
	}
	return false
}

// daysOld parses an ISO-ish date string (date or date-time) and returns
// its age in days relative to now, clamped at zero.
func daysOld(date string, now time.Time) (int, bool) {
	datePart := date
	if idx := strings.IndexByte(date, 'T'); idx >= 0 {
		datePart = date[:idx]
	}
	dt, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return 0, false
	}
	days := int(now.Truncate(24 * time.Hour).Sub(dt.Truncate(24*time.Hour)).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, true
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}
