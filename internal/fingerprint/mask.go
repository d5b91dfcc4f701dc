package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/hostscout/api/pkg/domain/report"
)

// maskedFields are the IP, MAC and name-family fields hidden in the
// masked fingerprint cache.
var maskedFields = []string{
	report.FieldName,
	report.FieldIPAddresses,
	report.FieldMACAddresses,
	"vm_name",
	"vm_dns_name",
	"virtual_host_name",
}

// maskValue replaces an identifying value with a stable opaque token,
// so equal values still compare equal across reports.
func maskValue(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:12])
}

// maskFingerprint returns a copy with all identifying fields masked.
func maskFingerprint(fp *report.Fingerprint) *report.Fingerprint {
	masked := fp.Clone()
	for _, key := range maskedFields {
		v := masked.Fields[key]
		if v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			masked.Fields[key] = maskValue(t)
		case []string:
			out := make([]string, len(t))
			for i, s := range t {
				out[i] = maskValue(s)
			}
			masked.Fields[key] = out
		case []any:
			out := make([]string, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok {
					out = append(out, maskValue(s))
				}
			}
			masked.Fields[key] = out
		}
	}
	return masked
}
