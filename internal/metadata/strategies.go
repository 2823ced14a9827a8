package metadata

import (
	"regexp"
	"strconv"
	"strings"
)

// Each extraction strategy inspects one view of the reference page and
// returns whatever fields it could find. Strategies run in a fixed order
// with first-success-wins per field, so a later strategy never overwrites
// an earlier hit.

type extraction struct {
	bpm *int
	key *string
}

func (e extraction) complete() bool {
	return e.bpm != nil && e.key != nil
}

// merge fills only the fields still unset on e.
func (e *extraction) merge(other extraction) {
	if e.bpm == nil && other.bpm != nil {
		e.bpm = other.bpm
	}
	if e.key == nil && other.key != nil {
		e.key = other.key
	}
}

// Scraped tempos outside this window are almost certainly a price, a year
// or a track length picked up by an over-eager pattern.
const (
	minScrapedBPM = 40
	maxScrapedBPM = 300
)

var (
	bpmLabeledPattern  = regexp.MustCompile(`(?i)\bbpm\b[^0-9]{0,12}([0-9]{2,3})`)
	bpmTrailingPattern = regexp.MustCompile(`(?i)\b([0-9]{2,3})\s*bpm\b`)
	keyLabeledPattern  = regexp.MustCompile(`(?i)\bkey\b[^a-g#♯♭]{0,12}([a-g][#♯b♭]?\s*(?:minor|major|min|maj|m)?)`)

	// Serialized player state, e.g. {"bpm":142,"key":"C#m"} inside a script tag.
	bpmStatePattern = regexp.MustCompile(`"bpm"\s*:\s*"?([0-9]{2,3})(?:\.[0-9]+)?"?`)
	keyStatePattern = regexp.MustCompile(`"key"\s*:\s*"([^"]{1,12})"`)

	keyTokenPattern = regexp.MustCompile(`^[A-G][#b]?m?$`)
)

// extractFromText pattern-matches the rendered page text against labeled
// tempo/key phrases like "BPM: 142" or "Key Cm".
func extractFromText(text string) extraction {
	var found extraction

	if m := bpmLabeledPattern.FindStringSubmatch(text); m != nil {
		if bpm, ok := parseScrapedBPM(m[1]); ok {
			found.bpm = &bpm
		}
	}
	if found.bpm == nil {
		if m := bpmTrailingPattern.FindStringSubmatch(text); m != nil {
			if bpm, ok := parseScrapedBPM(m[1]); ok {
				found.bpm = &bpm
			}
		}
	}

	if m := keyLabeledPattern.FindStringSubmatch(text); m != nil {
		if key := normalizeKey(m[1]); key != "" {
			found.key = &key
		}
	}

	return found
}

// extractFromState scans embedded script/state blobs for serialized
// tempo/key values.
func extractFromState(blobs []string) extraction {
	var found extraction

	for _, blob := range blobs {
		if found.complete() {
			break
		}
		if found.bpm == nil {
			if m := bpmStatePattern.FindStringSubmatch(blob); m != nil {
				if bpm, ok := parseScrapedBPM(m[1]); ok {
					found.bpm = &bpm
				}
			}
		}
		if found.key == nil {
			if m := keyStatePattern.FindStringSubmatch(blob); m != nil {
				if key := normalizeKey(m[1]); key != "" {
					found.key = &key
				}
			}
		}
	}

	return found
}

func parseScrapedBPM(s string) (int, bool) {
	bpm, err := strconv.Atoi(s)
	if err != nil || bpm < minScrapedBPM || bpm > maxScrapedBPM {
		return 0, false
	}
	return bpm, true
}

// normalizeKey reduces page spellings ("c# minor", "Db Major", "Am") to the
// short token form, e.g. "C#m", "Db", "Am". Returns "" when the input does
// not look like a musical key.
func normalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "♯", "#")
	s = strings.ReplaceAll(s, "♭", "b")

	note := strings.ToUpper(s[:1])
	rest := s[1:]

	accidental := ""
	if rest != "" && (rest[0] == '#' || rest[0] == 'b' || rest[0] == 'B') {
		if rest[0] == '#' {
			accidental = "#"
		} else {
			accidental = "b"
		}
		rest = rest[1:]
	}

	mode := ""
	switch strings.ToLower(strings.TrimSpace(rest)) {
	case "m", "min", "minor":
		mode = "m"
	case "", "maj", "major":
		mode = ""
	default:
		return ""
	}

	key := note + accidental + mode
	if !keyTokenPattern.MatchString(key) {
		return ""
	}
	return key
}
