package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"
)

const trackAPIBaseURL = "https://main.v2.beatstars.com/beat"

// Track pages end in a numeric id segment, e.g. .../dark-trap-beat-19283746.
var trackIDPattern = regexp.MustCompile(`-([0-9]{5,})/?$`)

// trackAPIClient is the last-resort strategy: skip the page entirely and ask
// the store's own track endpoint for the fields.
type trackAPIClient struct {
	baseURL string
	client  *http.Client
}

func newTrackAPIClient() *trackAPIClient {
	return &trackAPIClient{
		baseURL: trackAPIBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type trackAPIResponse struct {
	Response struct {
		Data struct {
			BPM  json.Number `json:"bpm"`
			Key  string      `json:"key"`
			Name string      `json:"name"`
		} `json:"data"`
	} `json:"response"`
}

func (c *trackAPIClient) extract(ctx context.Context, link string) extraction {
	id := trackIDFromLink(link)
	if id == "" {
		return extraction{}
	}

	data, err := c.fetch(ctx, id)
	if err != nil {
		log.Printf("[Scraper] track API lookup failed for id %s: %v", id, err)
		return extraction{}
	}

	var found extraction
	if raw, err := data.Response.Data.BPM.Float64(); err == nil {
		if bpm, ok := parseScrapedBPM(fmt.Sprintf("%d", int(raw))); ok {
			found.bpm = &bpm
		}
	}
	if key := normalizeKey(data.Response.Data.Key); key != "" {
		found.key = &key
	}
	return found
}

func (c *trackAPIClient) fetch(ctx context.Context, id string) (*trackAPIResponse, error) {
	url := fmt.Sprintf("%s?id=%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build track request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("track request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("track API returned status %d", resp.StatusCode)
	}

	var data trackAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode track response: %w", err)
	}
	return &data, nil
}

// trackIDFromLink pulls the numeric track id out of a store link. Returns ""
// when the link does not carry one.
func trackIDFromLink(link string) string {
	m := trackIDPattern.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}
