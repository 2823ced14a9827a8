package metadata

import "testing"

func TestExtractFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		bpm  int
		key  string
	}{
		{"labeled bpm and key", "Dark Trap Beat\nBPM: 142\nKey: C#m\n$29.99", 142, "C#m"},
		{"trailing bpm", "hard beat 95 BPM free download", 95, ""},
		{"spelled out minor", "Key: A minor · BPM 140", 140, "Am"},
		{"major normalized to bare note", "KEY Db Major, 128 bpm", 128, "Db"},
		{"price not mistaken for bpm", "only $150 today", 0, ""},
		{"bpm out of range rejected", "BPM: 999", 0, ""},
		{"nothing", "lorem ipsum", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractFromText(tt.text)

			bpm := 0
			if got.bpm != nil {
				bpm = *got.bpm
			}
			key := ""
			if got.key != nil {
				key = *got.key
			}

			if bpm != tt.bpm {
				t.Errorf("bpm: expected %d, got %d", tt.bpm, bpm)
			}
			if key != tt.key {
				t.Errorf("key: expected %q, got %q", tt.key, key)
			}
		})
	}
}

func TestExtractFromState(t *testing.T) {
	blobs := []string{
		`window.__INITIAL_STATE__={"track":{"title":"x","bpm":142,"key":"C#m"}}`,
		`{"bpm":"90"}`,
	}

	got := extractFromState(blobs)
	if got.bpm == nil || *got.bpm != 142 {
		t.Errorf("expected bpm 142 from first blob, got %v", got.bpm)
	}
	if got.key == nil || *got.key != "C#m" {
		t.Errorf("expected key C#m, got %v", got.key)
	}
}

func TestExtractFromStateSkipsInvalidKeys(t *testing.T) {
	// API keys and cache keys also serialize under "key".
	got := extractFromState([]string{`{"key":"cache-v2-beats"}`})
	if got.key != nil {
		t.Errorf("expected no key, got %q", *got.key)
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"C#m", "C#m"},
		{"c# minor", "C#m"},
		{"Db Major", "Db"},
		{"A min", "Am"},
		{"f", "F"},
		{"B♭ minor", "Bbm"},
		{"", ""},
		{"Hm", ""},
		{"C# mixolydian", ""},
	}

	for _, tt := range tests {
		if got := normalizeKey(tt.in); got != tt.want {
			t.Errorf("normalizeKey(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestTrackIDFromLink(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://www.beatstars.com/beat/dark-trap-19283746", "19283746"},
		{"https://www.beatstars.com/beat/dark-trap-19283746/", "19283746"},
		{"https://www.beatstars.com/beat/no-id-here", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := trackIDFromLink(tt.link); got != tt.want {
			t.Errorf("trackIDFromLink(%q): expected %q, got %q", tt.link, tt.want, got)
		}
	}
}
