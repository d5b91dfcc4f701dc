package fingerprint

import (
	"fmt"
	"strings"
	"time"

	"github.com/hostscout/api/pkg/domain/report"
)

// parseDate tries each layout in order.
func parseDate(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched %q", s)
}

// creationDateSource is one candidate raw fact for
// system_creation_date, with the layouts it may arrive in. Sources are
// ordered by increasing trust; later non-null values overwrite earlier
// ones.
type creationDateSource struct {
	rawKey  string
	layouts []string
}

var creationDateSources = []creationDateSource{
	{"date_yum_history", []string{"2006-01-02"}},
	{"date_filesystem_create", []string{"2006-01-02"}},
	{"date_anaconda_log", []string{"2006-01-02"}},
	{"registration_time", []string{"2006-01-02 15:04:05", "2006-01-02 15:04:05 -0700"}},
	{"date_machine_id", []string{"2006-01-02"}},
	{"creation_timestamp", []string{"2006-01-02T15:04:05-0700", "2006-01-02T15:04:05Z07:00"}},
}

// normalizeCreationDate derives system_creation_date from the merged
// record's raw facts. When the most trusted present value fails every
// layout the field is written null, with all tried keys joined by "/"
// in the metadata.
func normalizeCreationDate(fp *report.Fingerprint, rawFacts map[string]any) {
	var (
		best     time.Time
		bestKey  string
		tried    []string
		lastFail bool
	)

	for _, src := range creationDateSources {
		v, ok := rawFacts[src.rawKey]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		tried = append(tried, src.rawKey)

		t, err := parseDate(s, src.layouts)
		if err != nil {
			lastFail = true
			continue
		}
		lastFail = false
		best = t
		bestKey = src.rawKey
	}

	meta := report.Metadata{RawFactKey: bestKey}
	if len(fp.Sources) > 0 {
		meta.ServerID = fp.Sources[0].ServerID
		meta.SourceName = fp.Sources[0].SourceName
		meta.SourceType = fp.Sources[0].SourceType
	}

	switch {
	case lastFail:
		meta.RawFactKey = strings.Join(tried, "/")
		fp.SetNull(report.FieldSystemCreationDate, meta)
	case !best.IsZero():
		fp.Set(report.FieldSystemCreationDate, best.Format("2006-01-02"), meta)
	}
}
