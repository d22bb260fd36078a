package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reCandidateToken = regexp.MustCompile(`^(.+)-([A-Z]+)$`)
	apostrophes      = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'", "`", "'")
	dashes           = strings.NewReplacer("‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-")
)

// ParseCandidateToken splits "Name-PARTY" on the last hyphen. Names may carry
// their own hyphens ("Smith-Jones-R") or apostrophes ("O'Rourke-D").
func ParseCandidateToken(token string) (name, party string, ok bool) {
	token = strings.TrimSpace(dashes.Replace(token))
	m := reCandidateToken.FindStringSubmatch(token)
	if m == nil {
		return "", "", false
	}
	name = strings.TrimSpace(m[1])
	if name == "" || strings.HasSuffix(name, "-") {
		return "", "", false
	}
	return name, m[2], true
}

// NormalizeName folds compatibility forms and typographic apostrophes so that
// "O’Rourke" and "O'Rourke" compare equal.
func NormalizeName(input string) string {
	s := norm.NFKC.String(input)
	s = apostrophes.Replace(s)
	s = dashes.Replace(s)
	return NormalizeSpaces(s)
}

// NameKey is the case-insensitive lookup key for a candidate surname.
func NameKey(input string) string {
	return strings.ToUpper(NormalizeName(input))
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = NormalizeSpaces(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
