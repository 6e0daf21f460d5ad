package resolver

import (
	"regexp"
	"strings"

	"github.com/phl-informatics/accession-resolver/pkg/entrez"
)

// accessionPattern matches the three GenBank accession shapes as a prefix:
// one letter + 5 digits, two letters + 6 digits, or two letters + 8
// digits, each followed by the dot that precedes the version suffix
// (e.g. PQ880188.1).
var accessionPattern = regexp.MustCompile(`^[A-Za-z]\d{5}\.|^[A-Za-z]{2}\d{6}\.|^[A-Za-z]{2}\d{8}\.`)

// ValidAccession reports whether an accession string has one of the three
// accepted lexical shapes.
func ValidAccession(accession string) bool {
	return accessionPattern.MatchString(accession)
}

// TitleTerm returns the substring a candidate title must contain for the
// given term. Terms that already carry a slash (USA/WA-PHL-007327/2021)
// are matched as-is; bare terms are bounded with slash delimiters so
// WA-PHL-007327 cannot match the longer strain WA-PHL-0073275.
func TitleTerm(term string) string {
	if strings.Contains(term, "/") {
		return term
	}
	return "/" + term + "/"
}

// Matches reports whether a candidate record satisfies the term: the
// accession must be present and well-formed, and the title must contain
// the slash-bounded term. This is a heuristic disambiguator, not an
// authoritative lookup.
func Matches(rec entrez.Record, term string) bool {
	if rec.AccessionVersion == "" || !ValidAccession(rec.AccessionVersion) {
		return false
	}
	return strings.Contains(rec.Title, TitleTerm(term))
}
