// Package network implements the network (SSH) source inspector: host
// expression parsing, inventory construction, and the connect and
// inspect task runners.
package network

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxExpandedHosts caps how many hosts a single expression may expand
// to. Wider CIDR blocks must be split by the operator.
const MaxExpandedHosts = 1 << 16

// HostError reports an invalid host expression.
type HostError struct {
	Host   string
	Reason string
}

// Error implements the error interface.
func (e *HostError) Error() string {
	return fmt.Sprintf("invalid host %q: %s", e.Host, e.Reason)
}

var (
	octetPattern    = regexp.MustCompile(`^\d{1,3}$`)
	numRangePattern = regexp.MustCompile(`^\[(\d{1,3}):(\d{1,3})\]$`)
	dnsLabelPattern = regexp.MustCompile(`^[a-zA-Z0-9\-]+$`)
	dnsRangePattern = regexp.MustCompile(`\[([a-zA-Z0-9]+):([a-zA-Z0-9]+)\]`)
	ipDashPattern   = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}-\d{1,3}(\.\d{1,3}){3}$`)
)

// ValidatePattern checks a single host expression against the accepted
// grammar: IPv4 literal, IPv4 CIDR, octet ranges, DNS name, or
// alpha/numeric ranges inside a DNS name.
func ValidatePattern(host string) error {
	_, err := ExpandPattern(host)
	return err
}

// ValidatePatterns validates every expression, collecting one error
// message per bad host.
func ValidatePatterns(hosts []string) error {
	var bad []string
	for _, h := range hosts {
		if err := ValidatePattern(h); err != nil {
			bad = append(bad, err.Error())
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%s", strings.Join(bad, "; "))
	}
	return nil
}

// ExpandPattern expands one host expression to host literals.
func ExpandPattern(host string) ([]string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, &HostError{Host: host, Reason: "empty host"}
	}
	if ipDashPattern.MatchString(host) {
		return nil, &HostError{Host: host, Reason: "IP ranges of the form a.b.c.d-a.b.c.e are not supported"}
	}
	if strings.Contains(host, "/") {
		ranges, err := CIDRToRanges(host)
		if err != nil {
			return nil, err
		}
		return expandOctetRanges(host, ranges)
	}
	if looksLikeIPv4(host) {
		return expandOctetRanges(host, host)
	}
	return expandDNSName(host)
}

// ExpandPatterns validates and expands host expressions, deduplicating
// while preserving first-seen order.
func ExpandPatterns(hosts []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, h := range hosts {
		expanded, err := ExpandPattern(h)
		if err != nil {
			return nil, err
		}
		for _, e := range expanded {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// ApplyExclusions removes every host matched by the exclusion
// expressions. The exclusion grammar is identical to the host grammar.
func ApplyExclusions(hosts, excludes []string) ([]string, error) {
	if len(excludes) == 0 {
		return hosts, nil
	}
	excluded, err := ExpandPatterns(excludes)
	if err != nil {
		return nil, err
	}
	drop := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		drop[e] = true
	}
	var out []string
	for _, h := range hosts {
		if !drop[h] {
			out = append(out, h)
		}
	}
	return out, nil
}

// CIDRToRanges converts A.B.C.D/P to octet-range notation. For each
// octet the output is a literal when the prefix covers it fully, [0:255]
// when the prefix does not reach it, and [lo:hi] when the boundary falls
// inside it.
func CIDRToRanges(cidr string) (string, error) {
	slash := strings.IndexByte(cidr, '/')
	if slash < 0 {
		return "", &HostError{Host: cidr, Reason: "not CIDR notation"}
	}
	addr, prefixStr := cidr[:slash], cidr[slash+1:]

	prefix, err := strconv.Atoi(prefixStr)
	if err != nil || prefix < 0 || prefix > 32 {
		return "", &HostError{Host: cidr, Reason: "prefix must be between 0 and 32"}
	}

	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return "", &HostError{Host: cidr, Reason: "address must have four octets"}
	}

	octets := make([]int, 4)
	for i, p := range parts {
		if p == "" {
			return "", &HostError{Host: cidr, Reason: "empty octet"}
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return "", &HostError{Host: cidr, Reason: fmt.Sprintf("octet %q out of range", p)}
		}
		octets[i] = n
	}

	out := make([]string, 4)
	for i, octet := range octets {
		bits := prefix - 8*i
		switch {
		case bits >= 8:
			out[i] = strconv.Itoa(octet)
		case bits <= 0:
			out[i] = "[0:255]"
		default:
			mask := (-1 << (8 - bits)) & 0xFF
			lo := octet & mask
			hi := lo + (^mask & 0xFF)
			out[i] = fmt.Sprintf("[%d:%d]", lo, hi)
		}
	}
	return strings.Join(out, "."), nil
}

// looksLikeIPv4 reports whether the expression is four dot-separated
// parts, each a bare octet or a numeric range.
func looksLikeIPv4(host string) bool {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if !octetPattern.MatchString(p) && !numRangePattern.MatchString(p) {
			return false
		}
	}
	return true
}

// expandOctetRanges expands an IPv4 expression with optional [lo:hi]
// octet ranges. orig is kept for error messages.
func expandOctetRanges(orig, expr string) ([]string, error) {
	parts := strings.Split(expr, ".")
	if len(parts) != 4 {
		return nil, &HostError{Host: orig, Reason: "address must have four octets"}
	}

	choices := make([][]string, 4)
	total := 1
	for i, p := range parts {
		if m := numRangePattern.FindStringSubmatch(p); m != nil {
			lo, _ := strconv.Atoi(m[1])
			hi, _ := strconv.Atoi(m[2])
			if lo > hi || hi > 255 {
				return nil, &HostError{Host: orig, Reason: fmt.Sprintf("bad octet range %s", p)}
			}
			vals := make([]string, 0, hi-lo+1)
			for v := lo; v <= hi; v++ {
				vals = append(vals, strconv.Itoa(v))
			}
			choices[i] = vals
		} else if octetPattern.MatchString(p) {
			n, _ := strconv.Atoi(p)
			if n > 255 {
				return nil, &HostError{Host: orig, Reason: fmt.Sprintf("octet %q out of range", p)}
			}
			choices[i] = []string{p}
		} else {
			return nil, &HostError{Host: orig, Reason: fmt.Sprintf("bad octet %q", p)}
		}
		total *= len(choices[i])
		if total > MaxExpandedHosts {
			return nil, &HostError{Host: orig, Reason: fmt.Sprintf("expands to more than %d hosts", MaxExpandedHosts)}
		}
	}

	out := make([]string, 0, total)
	for _, a := range choices[0] {
		for _, b := range choices[1] {
			for _, c := range choices[2] {
				for _, d := range choices[3] {
					out = append(out, a+"."+b+"."+c+"."+d)
				}
			}
		}
	}
	return out, nil
}

// expandDNSName expands a DNS name with optional [x:y] alpha or numeric
// ranges in its labels.
func expandDNSName(host string) ([]string, error) {
	locs := dnsRangePattern.FindAllStringSubmatchIndex(host, -1)

	// Validate the non-range remainder as DNS labels.
	stripped := dnsRangePattern.ReplaceAllString(host, "x")
	for _, label := range strings.Split(stripped, ".") {
		if label == "" || !dnsLabelPattern.MatchString(label) {
			return nil, &HostError{Host: host, Reason: "not a valid DNS name"}
		}
	}
	if len(locs) == 0 {
		return []string{host}, nil
	}

	// Expand the first range, then recurse on each result.
	m := locs[0]
	prefix, suffix := host[:m[0]], host[m[1]:]
	lo, hi := host[m[2]:m[3]], host[m[4]:m[5]]

	values, err := rangeValues(host, lo, hi)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, v := range values {
		expanded, err := expandDNSName(prefix + v + suffix)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
		if len(out) > MaxExpandedHosts {
			return nil, &HostError{Host: host, Reason: fmt.Sprintf("expands to more than %d hosts", MaxExpandedHosts)}
		}
	}
	return out, nil
}

// rangeValues expands [lo:hi] where both bounds are numeric or both are
// single lowercase/uppercase letters.
func rangeValues(host, lo, hi string) ([]string, error) {
	loN, loErr := strconv.Atoi(lo)
	hiN, hiErr := strconv.Atoi(hi)
	if loErr == nil && hiErr == nil {
		if loN > hiN {
			return nil, &HostError{Host: host, Reason: fmt.Sprintf("bad range [%s:%s]", lo, hi)}
		}
		vals := make([]string, 0, hiN-loN+1)
		for v := loN; v <= hiN; v++ {
			vals = append(vals, strconv.Itoa(v))
		}
		return vals, nil
	}

	if len(lo) == 1 && len(hi) == 1 && isAlpha(lo[0]) && isAlpha(hi[0]) && lo[0] <= hi[0] {
		vals := make([]string, 0, hi[0]-lo[0]+1)
		for c := lo[0]; c <= hi[0]; c++ {
			vals = append(vals, string(c))
		}
		return vals, nil
	}
	return nil, &HostError{Host: host, Reason: fmt.Sprintf("bad range [%s:%s]", lo, hi)}
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
