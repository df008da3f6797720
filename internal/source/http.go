package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tablewise/backend/internal/models"
)

// HTTP fetches location metrics from a remote per-location metrics API:
// GET {base}/locations/{id}/metrics?start=...&end=... with RFC3339 bounds.
type HTTP struct {
	BaseURL string
	Client  *http.Client
}

func (h HTTP) LocationMetrics(ctx context.Context, locationID string, start, end time.Time) (models.LocationMetrics, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 15 * time.Second}
	}

	endpoint := fmt.Sprintf("%s/locations/%s/metrics?start=%s&end=%s",
		h.BaseURL,
		url.PathEscape(locationID),
		url.QueryEscape(start.UTC().Format(time.RFC3339)),
		url.QueryEscape(end.UTC().Format(time.RFC3339)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.LocationMetrics{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return models.LocationMetrics{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.LocationMetrics{}, fmt.Errorf("metrics source returned status %d", resp.StatusCode)
	}

	var m models.LocationMetrics
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return models.LocationMetrics{}, err
	}
	if m.ID == "" {
		m.ID = locationID
	}
	return m, nil
}
