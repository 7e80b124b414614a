package csvparser

import "strings"

// candidateDelimiters are tried in priority order; earlier entries win ties.
var candidateDelimiters = []rune{'\t', ';', ',', '|'}

// DetectDelimiter infers the field separator of a text source from one
// sample line (normally the header line).
//
// The candidate with the most occurrences wins; ties go to the earlier
// candidate (tab, semicolon, comma, pipe). A line with none of them yields
// a comma.
//
// Example:
//   DetectDelimiter("a;b,c;d") == ';'
func DetectDelimiter(line string) rune {
	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// hasTrailingDelimiter reports whether line, stripped of its line break,
// ends with delimiter.
func hasTrailingDelimiter(line string, delimiter rune) bool {
	return strings.HasSuffix(strings.TrimRight(line, "\r\n"), string(delimiter))
}

// DelimiterName returns a readable name for log messages.
func DelimiterName(d rune) string {
	switch d {
	case '\t':
		return "tab"
	case ';':
		return "semicolon"
	case ',':
		return "comma"
	case '|':
		return "pipe"
	}
	return string(d)
}
