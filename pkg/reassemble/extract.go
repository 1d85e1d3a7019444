package reassemble

import "strings"

// Marker tags a line whose remainder is a JSON fragment.
const Marker = "PROF_START|"

// Extraction is the ordered concatenation of every tagged fragment.
type Extraction struct {
	Raw       string
	Lines     int
	Fragments int
}

// Extract joins, in line order, the text following the first marker on each
// tagged line. Untagged lines are skipped. An empty marker means Marker.
func Extract(lines []string, marker string) Extraction {
	if marker == "" {
		marker = Marker
	}

	out := Extraction{Lines: len(lines)}
	var b strings.Builder
	for _, line := range lines {
		_, fragment, found := strings.Cut(line, marker)
		if !found {
			continue
		}
		b.WriteString(fragment)
		out.Fragments++
	}
	out.Raw = b.String()
	return out
}
