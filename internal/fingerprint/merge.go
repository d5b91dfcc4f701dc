package fingerprint

import (
	"fmt"

	"github.com/hostscout/api/pkg/domain/report"
)

// vcenterReverseKeys flip merge priority on the vcenter pass: vCenter
// is authoritative for VM provisioning shape and virtualization
// nature.
var vcenterReverseKeys = map[string]bool{
	report.FieldCPUCount:           true,
	report.FieldInfrastructureType: true,
}

// mergeFingerprints merges m into priority record p, field by field.
// The merge-in record wins a field when it is reverse-priority, absent
// from p, null in p, or when only the merge-in side had sudo.
func mergeFingerprints(p, m *report.Fingerprint, reverse map[string]bool) *report.Fingerprint {
	out := p.Clone()

	for k, mv := range m.Fields {
		takeM := false
		switch {
		case reverse[k]:
			takeM = true
		case !out.Has(k):
			takeM = true
		case out.Fields[k] == nil && mv != nil:
			takeM = true
		case !out.Metadata[k].HasSudo && m.Metadata[k].HasSudo:
			takeM = true
		}
		if takeM {
			out.Fields[k] = mv
			out.Metadata[k] = m.Metadata[k]
		}
	}

	out.Sources = unionSources(out.Sources, m.Sources)
	out.Entitlements = dedupEntitlements(append(out.Entitlements, m.Entitlements...))
	out.Products = mergeProducts(out.Products, m.Products)
	return out
}

func unionSources(a, b []report.SourceRef) []report.SourceRef {
	seen := make(map[string]bool, len(a))
	out := append([]report.SourceRef(nil), a...)
	for _, s := range a {
		seen[s.Key()] = true
	}
	for _, s := range b {
		if !seen[s.Key()] {
			seen[s.Key()] = true
			out = append(out, s)
		}
	}
	return out
}

func dedupEntitlements(ents []report.Entitlement) []report.Entitlement {
	seen := make(map[string]bool, len(ents))
	out := ents[:0]
	for _, e := range ents {
		if seen[e.Key()] {
			continue
		}
		seen[e.Key()] = true
		out = append(out, e)
	}
	return out
}

// mergeProducts merges by product name; a detected presence overrides
// an absent one.
func mergeProducts(a, b []report.Product) []report.Product {
	byName := make(map[string]int, len(a))
	out := append([]report.Product(nil), a...)
	for i, p := range out {
		byName[p.Name] = i
	}
	for _, p := range b {
		i, ok := byName[p.Name]
		if !ok {
			byName[p.Name] = len(out)
			out = append(out, p)
			continue
		}
		if out[i].Presence == "absent" && p.Presence != "absent" {
			out[i] = p
		}
	}
	return out
}

// dedupByKey collapses records sharing the same scalar key value.
// Records without the key pass through. The earlier record is the
// merge priority.
func dedupByKey(fps []*report.Fingerprint, key string) []*report.Fingerprint {
	seen := make(map[string]int)
	out := make([]*report.Fingerprint, 0, len(fps))
	for _, f := range fps {
		v := f.Get(key)
		if v == nil {
			out = append(out, f)
			continue
		}
		k := fmt.Sprintf("%v", v)
		if i, ok := seen[k]; ok {
			out[i] = mergeFingerprints(out[i], f, nil)
			continue
		}
		seen[k] = len(out)
		out = append(out, f)
	}
	return out
}

// dedupSourceRecords runs the in-source dedup passes for one source
// type, each pass independent and in order.
func dedupSourceRecords(fps []*report.Fingerprint, keys []string) []*report.Fingerprint {
	for _, key := range keys {
		fps = dedupByKey(fps, key)
	}
	return fps
}

// keyValues returns the index values a record contributes for one key,
// exploding list-valued fields to one entry per element.
func keyValues(f *report.Fingerprint, key string) []string {
	v := f.Get(key)
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	s := fmt.Sprintf("%v", v)
	if s == "" {
		return nil
	}
	return []string{s}
}

// mergeOnKeyPairs merges candidates into the base list on the given
// (base key, candidate key) pairs, one indexing pass per pair. Matched
// candidates are consumed; remainders of both lists pass through. A
// final dedup by global id collapses records that matched via more
// than one key.
func mergeOnKeyPairs(base, candidates []*report.Fingerprint, pairs [][2]string, reverse map[string]bool) []*report.Fingerprint {
	cands := append([]*report.Fingerprint(nil), candidates...)

	for _, pair := range pairs {
		index := make(map[string]int)
		for i, b := range base {
			for _, v := range keyValues(b, pair[0]) {
				if _, taken := index[v]; !taken {
					index[v] = i
				}
			}
		}
		for j, c := range cands {
			if c == nil {
				continue
			}
			for _, v := range keyValues(c, pair[1]) {
				if i, ok := index[v]; ok {
					base[i] = mergeFingerprints(base[i], c, reverse)
					cands[j] = nil
					break
				}
			}
		}
	}

	out := append([]*report.Fingerprint(nil), base...)
	for _, c := range cands {
		if c != nil {
			out = append(out, c)
		}
	}
	return dedupByGlobalID(out)
}

func dedupByGlobalID(fps []*report.Fingerprint) []*report.Fingerprint {
	seen := make(map[string]int, len(fps))
	out := make([]*report.Fingerprint, 0, len(fps))
	for _, f := range fps {
		if i, ok := seen[f.GlobalID]; ok {
			out[i] = mergeFingerprints(out[i], f, nil)
			continue
		}
		seen[f.GlobalID] = len(out)
		out = append(out, f)
	}
	return out
}
