package cohort

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// maxRosterBytes bounds roster responses.
const maxRosterBytes = 4 << 20

// HTTP fetches rosters from an enrolment service at GET {base}/rosters/{key},
// which answers {"students": ["S001", ...]}. Caching follows the response's
// Cache-Control headers when the client carries a caching transport.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP creates an HTTP roster resolver.
func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type rosterResponse struct {
	Students []string `json:"students"`
}

// Roster fetches the roster for key. A 404 is an empty roster.
func (h *HTTP) Roster(ctx context.Context, key string) ([]string, error) {
	endpoint := h.baseURL + "/rosters/" + url.PathEscape(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build roster request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRosterUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return []string{}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s returned %s", ErrRosterUnavailable, endpoint, resp.Status)
	}

	var body rosterResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRosterBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode roster response: %w", err)
	}

	log.Debug().
		Str("roster_key", key).
		Bool("cached", resp.Header.Get("X-From-Cache") == "1").
		Int("count", len(body.Students)).
		Msg("Fetched roster")

	return normalize(body.Students), nil
}
