// Package source fetches raw listing records from external marketplace
// backends and normalizes them into the common Listing shape. Adapters never
// fail upward: any network, parse, or schema problem results in an empty
// batch and a log line, and the scan cycle carries on with partial data.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tondealbot/internal/config"
	"tondealbot/internal/models"
)

type Adapter interface {
	Name() string
	// Fetch returns the currently-listed items. It never returns an error:
	// failures are logged and an empty slice comes back.
	Fetch(ctx context.Context) []models.Listing
}

// FromConfig builds the adapters named in cfg.Sources, skipping any that
// lack required configuration.
func FromConfig(cfg *config.Config) []Adapter {
	client := &http.Client{Timeout: cfg.FetchTimeout}
	var adapters []Adapter
	for _, name := range cfg.Sources {
		switch strings.ToLower(name) {
		case "tonapi":
			adapters = append(adapters, NewTonAPI(cfg.TonAPIBase, cfg.TonAPIToken, client))
		case "getgems":
			if len(cfg.GetgemsCollections) == 0 {
				slog.Warn("getgems source enabled but GETGEMS_COLLECTIONS is empty, skipping")
				continue
			}
			adapters = append(adapters, NewGetgems(cfg.GetgemsURL, cfg.GetgemsCollections, client))
		case "feed":
			if cfg.FeedURL == "" {
				slog.Warn("feed source enabled but FEED_URL is not set, skipping")
				continue
			}
			adapters = append(adapters, NewFeed(cfg.FeedURL, client))
		default:
			slog.Warn("Unknown scanner source, skipping", "source", name)
		}
	}
	return adapters
}

// getJSON issues a GET and decodes the body into dst.
func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return doJSON(client, req, dst)
}

// postJSON issues a POST with a JSON body and decodes the response into dst.
func postJSON(ctx context.Context, client *http.Client, url string, payload any, dst any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(client, req, dst)
}

func doJSON(client *http.Client, req *http.Request, dst any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %s: %s", resp.Status, truncate(string(body), 200))
	}
	return json.Unmarshal(body, dst)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Field extraction helpers. Backend schemas drift between API revisions, so
// values are looked up under every historical field name and tolerated in
// both string and number encodings.

func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func pickFloat(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if f := asFloat(m[k]); f != nil {
			return f
		}
	}
	return nil
}

func asFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if t == "" {
			return nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil
		}
		return &f
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// unixTime converts an epoch-seconds field to a time, zero when absent.
func unixTime(v any) time.Time {
	f := asFloat(v)
	if f == nil || *f <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(*f), 0)
}

// nanoToTON converts an amount that may be quoted in nanoTON. Marketplace
// responses quote sale prices in nanoTON; anything above this threshold
// cannot plausibly be a TON-denominated asking price.
func nanoToTON(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	if v >= 1e7 {
		v = v / 1e9
	}
	return &v
}
