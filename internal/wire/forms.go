package wire

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"shiftdesk/internal/domain"
)

// Field names shared by the client forms and the backend.
const (
	FieldCSRF         = "csrfmiddlewaretoken"
	HeaderCSRF        = "X-CSRFToken"
	HeaderActor       = "X-Actor-Id"
	FieldDate         = "date"
	FieldShift        = "shift"
	FieldUnitCode     = "unit_code"
	FieldSectionTrack = "section_track_input"
	FieldProblem      = "problem"
	FieldTitle        = "title"
	FieldDetails      = "details"
	FieldReportID     = "report_id"
	FieldAction       = "action"
	FieldFeedback     = "feedback"
)

// Sub-record field prefixes of an activity entry, in form order.
const (
	EntryComponent  = "component"
	EntryActivities = "activities"
	EntrySC         = "sc"
	EntryUSC        = "usc"
	EntryACD        = "acd"
)

var EntryPrefixes = []string{EntryComponent, EntryActivities, EntrySC, EntryUSC, EntryACD}

// EntryFields returns the flat fields of one activity entry keyed by its index.
func EntryFields(e domain.ActivityEntry) map[string]any {
	return map[string]any{
		IndexedKey(EntryComponent, e.Index):  e.Component,
		IndexedKey(EntryActivities, e.Index): e.Activities,
		IndexedKey(EntrySC, e.Index):         e.SC,
		IndexedKey(EntryUSC, e.Index):        e.USC,
		IndexedKey(EntryACD, e.Index):        e.ACD,
	}
}

var indexedKeyRe = regexp.MustCompile(`^([a-z]+)_(\d+)$`)

// DecodeIndexed groups fields named <prefix>_<index> by index for the given
// prefixes. Indices keep their gaps; the result is sorted by index.
func DecodeIndexed(values url.Values, prefixes ...string) ([]int, map[int]map[string]string) {
	allowed := map[string]bool{}
	for _, p := range prefixes {
		allowed[p] = true
	}
	groups := map[int]map[string]string{}
	for key, vals := range values {
		m := indexedKeyRe.FindStringSubmatch(key)
		if m == nil || !allowed[m[1]] || len(vals) == 0 {
			continue
		}
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if groups[idx] == nil {
			groups[idx] = map[string]string{}
		}
		groups[idx][m[1]] = vals[len(vals)-1]
	}
	indices := make([]int, 0, len(groups))
	for idx := range groups {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices, groups
}

// DecodeActivityEntries rebuilds the activity entries from a submitted form.
func DecodeActivityEntries(values url.Values) ([]domain.ActivityEntry, error) {
	indices, groups := DecodeIndexed(values, EntryPrefixes...)
	entries := make([]domain.ActivityEntry, 0, len(indices))
	for _, idx := range indices {
		g := groups[idx]
		e := domain.ActivityEntry{
			Index:      idx,
			Component:  strings.TrimSpace(g[EntryComponent]),
			Activities: strings.TrimSpace(g[EntryActivities]),
		}
		var err error
		if e.SC, err = counter(g, EntrySC, idx); err != nil {
			return nil, err
		}
		if e.USC, err = counter(g, EntryUSC, idx); err != nil {
			return nil, err
		}
		if e.ACD, err = counter(g, EntryACD, idx); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func counter(g map[string]string, prefix string, idx int) (int, error) {
	raw := strings.TrimSpace(g[prefix])
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", IndexedKey(prefix, idx))
	}
	return n, nil
}
