package util

import (
	"strconv"
	"strings"
)

// CleanSampleID reduces a raw sample identifier to its join form:
// lowercase with every non-alphanumeric rune removed, so "MC 131",
// "mc_131" and "Mc131" all become "mc131".
func CleanSampleID(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	out := strings.Builder{}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func NormalizeSpaces(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// FormatValue renders an abundance value the way it was written in
// the source cell, without trailing zeros.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

func DerefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func DerefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
