package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"launch-watch/internal/domain"
)

// MintPlaceholder is replaced by the mint address in HTTPSource URL templates.
const MintPlaceholder = "{mint}"

// HTTPSource fetches metadata from a JSON API addressed by a URL template.
type HTTPSource struct {
	template string
	client   *http.Client
}

// NewHTTPSource creates a source for a URL template such as
// "https://frontend-api.pump.fun/coins/{mint}".
func NewHTTPSource(template string, timeout time.Duration) (*HTTPSource, error) {
	if !strings.Contains(template, MintPlaceholder) {
		return nil, fmt.Errorf("url template %q lacks %s", template, MintPlaceholder)
	}
	if _, err := url.Parse(strings.ReplaceAll(template, MintPlaceholder, "x")); err != nil {
		return nil, fmt.Errorf("url template: %w", err)
	}
	return &HTTPSource{
		template: template,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Name implements Source.
func (s *HTTPSource) Name() string {
	return "http"
}

type httpMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	URI      string `json:"uri"`
	ImageURI string `json:"image_uri"`
	Logo     string `json:"logo"`
}

// Fetch implements Source. A 404 is treated as absent.
func (s *HTTPSource) Fetch(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	target := strings.ReplaceAll(s.template, MintPlaceholder, url.PathEscape(mint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var payload httpMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Name == "" && payload.Symbol == "" {
		return nil, nil
	}

	md := &domain.TokenMetadata{
		Mint:     mint,
		Name:     payload.Name,
		Symbol:   payload.Symbol,
		Source:   s.Name(),
		Resolved: true,
	}
	for _, u := range []string{payload.URI, payload.ImageURI, payload.Logo} {
		if u != "" {
			md.URI = &u
			break
		}
	}
	return md, nil
}
