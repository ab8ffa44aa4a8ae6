package taxon

import "regexp"

// The historical counting sheets use a handful of naming conventions
// that never made it into any nomenclature standard. Each one is
// handled by a (pattern, rewrite) rule; the first matching rule wins
// and anything unrecognized passes through untouched.
type rule struct {
	re      *regexp.Regexp
	rewrite func(m []string) string
}

var rules = []rule{
	// Species complex joined with "+" (e.g. "Sardinella+Sardinops"):
	// only the leading genus is publishable.
	{
		re:      regexp.MustCompile(`^([A-Z][a-z]+).*\+`),
		rewrite: func(m []string) string { return m[1] + " spp" },
	},
	// Family-level record marked "n.i." (no identification), e.g.
	// "Clupeidae n.i.". The sheets' convention replaces the family
	// suffix with a placeholder genus.
	{
		re:      regexp.MustCompile(`^([A-Z][a-z]+)idae\s+n\.i\.`),
		rewrite: func(m []string) string { return m[1] + "genus sp" },
	},
	// Higher group followed by a dash, e.g. "Engraulis - group".
	{
		re:      regexp.MustCompile(`^([A-Z][a-z]+)\s*-`),
		rewrite: func(m []string) string { return m[1] + " indet" },
	},
	// Binomial with optional parenthesized subgenus. Only the first
	// lowercase word after the genus (or subgenus) is the epithet;
	// author surnames are capitalized and years are digits, so the
	// trailing whitespace-or-end anchor drops them for free. It also
	// keeps abbreviations like "n.i." from being read as an epithet.
	{
		re:      regexp.MustCompile(`^([A-Z][a-z]+)\s+(?:\([A-Z][a-z]+\)\s+)?([a-z]+)(?:\s|$)`),
		rewrite: func(m []string) string { return m[1] + " " + m[2] },
	},
}

// Normalize standardizes a raw taxon label into a canonical
// genus/species form. A nil label stays nil.
func Normalize(name *string) *string {
	if name == nil {
		return nil
	}
	out := Standardize(*name)
	return &out
}

// Standardize is the non-pointer form of Normalize: it applies the
// rule cascade and returns the input unchanged when no rule matches.
func Standardize(name string) string {
	for _, r := range rules {
		if m := r.re.FindStringSubmatch(name); m != nil {
			return r.rewrite(m)
		}
	}
	return name
}
