package executor

import (
	"fmt"
	"regexp"

	"github.com/researchd/researchd/pkg/evidence"
)

var inlineLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)

// assembleCitations scans state.Sections for inline markdown links in
// appearance order, unions them with state.Evidence (excluding sentinel
// records), numbers every distinct canonical URL in first-appearance
// order, rewrites each inline link to "text<sup>[N]</sup>" in place, and
// produces the parallel citation registry plus state.Citations display
// strings.
func (e *Executor) assembleCitations(state *ExecutionState) {
	order := make([]string, 0)
	numbers := make(map[string]int)
	meta := make(map[string]Citation)

	evByKey := make(map[string]evidence.Evidence, len(state.Evidence))
	for _, ev := range state.Evidence {
		if ev.IsSentinel() {
			continue
		}
		evByKey[evidence.Canonical(ev.URL)] = ev
	}

	assignNumber := func(rawURL string) (int, string) {
		key := evidence.Canonical(rawURL)
		if n, ok := numbers[key]; ok {
			return n, key
		}
		n := len(order) + 1
		numbers[key] = n
		order = append(order, key)
		return n, key
	}

	sections := make([]string, len(state.Sections))
	for i, sec := range state.Sections {
		sections[i] = inlineLinkPattern.ReplaceAllStringFunc(sec, func(match string) string {
			m := inlineLinkPattern.FindStringSubmatch(match)
			text, url := m[1], m[2]
			n, key := assignNumber(url)
			if _, ok := meta[key]; !ok {
				c := Citation{Number: n, URL: url}
				if ev, ok := evByKey[key]; ok {
					c.Title = ev.Title
					c.Snippet = ev.Snippet
				}
				meta[key] = c
			}
			return fmt.Sprintf("%s<sup>[%d]</sup>", text, n)
		})
	}
	state.Sections = sections

	for _, ev := range state.Evidence {
		if ev.IsSentinel() {
			continue
		}
		key := evidence.Canonical(ev.URL)
		if _, ok := numbers[key]; ok {
			continue
		}
		n, _ := assignNumber(ev.URL)
		meta[key] = Citation{Number: n, URL: ev.URL, Title: ev.Title, Snippet: ev.Snippet}
	}

	registry := make([]Citation, 0, len(order))
	displays := make([]string, 0, len(order))
	for _, key := range order {
		c, ok := meta[key]
		if !ok {
			continue
		}
		registry = append(registry, c)

		publisher, date := "", ""
		if ev, ok := evByKey[key]; ok {
			publisher, date = ev.Publisher, ev.Date
		}
		displays = append(displays, fmt.Sprintf("%s (%s) %s", publisher, date, c.URL))
	}

	state.citations = registry
	state.Citations = displays
}
