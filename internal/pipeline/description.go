package pipeline

import (
	"fmt"
	"strings"

	"github.com/beatpress/api/internal/models"
)

// BuildTitle renders the listing title, e.g.
//
//	[FREE] Travis Scott Type Beat - "Nightfall" | 142 BPM C#m
//
// Platform truncation happens at upload time, not here.
func BuildTitle(job *models.Job, md *models.ResolvedMetadata) string {
	seed := primaryTag(job.Tags)

	var b strings.Builder
	b.WriteString("[FREE] ")
	if seed != "" {
		b.WriteString(seed)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "Type Beat - %q | %d BPM %s", job.BeatTitle, md.BPM, md.Key)
	return b.String()
}

// BuildDescription renders the long-form description with purchase links,
// contact details and hashtags.
func BuildDescription(job *models.Job, md *models.ResolvedMetadata) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%q - %s type beat\n", job.BeatTitle, strings.ToLower(job.Genre))
	fmt.Fprintf(&b, "%d BPM | Key: %s\n\n", md.BPM, md.Key)

	if job.BeatstarsLink != "" {
		fmt.Fprintf(&b, "💰 Purchase (untagged): %s\n", job.BeatstarsLink)
	}
	if job.InstagramLink != "" {
		fmt.Fprintf(&b, "📸 Instagram: %s\n", job.InstagramLink)
	}
	if job.Email != "" {
		fmt.Fprintf(&b, "📧 Contact: %s\n", job.Email)
	}

	b.WriteString("\nFree for non-profit use only. Purchase a license for commercial use.\n\n")

	for _, tag := range BuildTags(job.Tags, job.Genre) {
		fmt.Fprintf(&b, "#%s ", strings.ReplaceAll(tag, " ", ""))
	}
	return strings.TrimSpace(b.String())
}

// BuildTags expands the comma-separated tag field plus the genre into the
// upload tag list, with "type beat" variants for search.
func BuildTags(rawTags, genre string) []string {
	seen := make(map[string]bool)
	var tags []string

	add := func(tag string) {
		tag = strings.TrimSpace(strings.ToLower(tag))
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, tag := range strings.Split(rawTags, ",") {
		add(tag)
		if t := strings.TrimSpace(tag); t != "" {
			add(t + " type beat")
		}
	}

	if g := strings.TrimSpace(genre); g != "" {
		add(g)
		add(g + " type beat")
		add(g + " instrumental")
	}

	add("type beat")
	add("free type beat")
	add("instrumental")

	return tags
}

func primaryTag(rawTags string) string {
	first := strings.TrimSpace(strings.Split(rawTags, ",")[0])
	words := strings.Fields(strings.ToLower(first))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
