package fingerprint

import (
	"github.com/hostscout/api/pkg/domain/report"
	"github.com/hostscout/api/pkg/domain/source"
)

// factMapper applies one source record's raw facts to a fingerprint,
// stamping provenance metadata on every written field.
type factMapper struct {
	fp      *report.Fingerprint
	facts   map[string]any
	base    report.Metadata
	hasSudo bool
}

func newFactMapper(src report.SourceFacts, facts map[string]any) *factMapper {
	hasSudo := false
	if src.SourceType == source.TypeNetwork {
		hasSudo, _ = coerce(facts["user_has_sudo"]).(bool)
	}
	return &factMapper{
		fp:    report.NewFingerprint(),
		facts: facts,
		base: report.Metadata{
			ServerID:   src.ServerID,
			SourceName: src.SourceName,
			SourceType: src.SourceType.String(),
			HasSudo:    hasSudo,
		},
		hasSudo: hasSudo,
	}
}

func (m *factMapper) meta(rawKey string) report.Metadata {
	meta := m.base
	meta.RawFactKey = rawKey
	return meta
}

// set maps the first present raw fact key onto the fingerprint field.
func (m *factMapper) set(field string, rawKeys ...string) {
	for _, key := range rawKeys {
		v, ok := m.facts[key]
		if !ok {
			continue
		}
		if value := coerce(v); value != nil {
			m.fp.Set(field, value, m.meta(key))
			return
		}
	}
}

// setList maps the first present list-valued fact, optionally
// lowercasing elements.
func (m *factMapper) setList(field string, lower bool, rawKeys ...string) {
	for _, key := range rawKeys {
		v, ok := m.facts[key]
		if !ok {
			continue
		}
		values := toStrings(v)
		if len(values) == 0 {
			continue
		}
		if lower {
			values = lowered(values)
		}
		m.fp.Set(field, values, m.meta(key))
		return
	}
}

// setValue writes a computed value under the given raw-fact key.
func (m *factMapper) setValue(field string, value any, rawKey string) {
	m.fp.Set(field, value, m.meta(rawKey))
}

// setDate parses the first present fact against the given layouts and
// writes the date formatted as YYYY-MM-DD.
func (m *factMapper) setDate(field string, layouts []string, rawKeys ...string) {
	for _, key := range rawKeys {
		v, ok := m.facts[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if t, err := parseDate(s, layouts); err == nil {
			m.fp.Set(field, t.Format("2006-01-02"), m.meta(key))
			return
		}
	}
}

func (m *factMapper) sourceRef() report.SourceRef {
	return report.SourceRef{
		ServerID:   m.base.ServerID,
		SourceName: m.base.SourceName,
		SourceType: m.base.SourceType,
	}
}

func (m *factMapper) finish() *report.Fingerprint {
	m.fp.Sources = []report.SourceRef{m.sourceRef()}
	return m.fp
}
