package stubresolve

import (
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// searchFlag mirrors the Python source's tri-state search argument:
// unspecified means "use Config.UseSearchByDefault".
type searchFlag int

const (
	searchUnspecified searchFlag = iota
	searchEnabled
	searchDisabled
)

// resolve turns a tri-state flag into a concrete bool, given
// the resolver's configured default.
func (f searchFlag) resolve(useSearchByDefault bool) bool {
	switch f {
	case searchEnabled:
		return true
	case searchDisabled:
		return false
	default:
		return useSearchByDefault
	}
}

// planQnames expands input (a name as given by the caller, absolute or
// relative) into the ordered list of fully qualified names to try,
// per §4.E:
//
//  1. An absolute input is returned as-is, alone.
//  2. Otherwise, if the name has at least cfg.Ndots dots, or search is
//     disabled, only the single Domain-qualified fallback is tried.
//  3. Otherwise every suffix in cfg.Search is tried, in order.
func planQnames(input string, flag searchFlag, cfg *Config) []string {
	normalized := normalizeLabel(input)

	if dns.IsFqdn(normalized) {
		return []string{dns.CanonicalName(normalized)}
	}

	useSearch := flag.resolve(cfg.UseSearchByDefault)

	if strings.Count(normalized, ".") >= cfg.Ndots || !useSearch {
		return []string{dns.CanonicalName(joinSuffix(normalized, cfg.Domain))}
	}

	qnames := make([]string, 0, len(cfg.Search))
	for _, suffix := range cfg.Search {
		qnames = append(qnames, dns.CanonicalName(joinSuffix(normalized, suffix)))
	}
	return qnames
}

func joinSuffix(name, suffix string) string {
	name = strings.TrimSuffix(name, ".")
	suffix = strings.TrimSuffix(suffix, ".")
	if suffix == "" {
		return name + "."
	}
	return name + "." + suffix + "."
}

// normalizeLabel converts any internationalized labels in name to their
// ASCII (punycode) form via idna, so the rest of the planner and the
// wire codec only ever see ASCII names. ASCII names pass through apart
// from being lowercased; names that idna declines to transform are
// returned unchanged.
func normalizeLabel(name string) string {
	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return name
	}
	return ascii
}
