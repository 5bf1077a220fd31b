package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/citifix/backend/internal/models"
)

type NominatimGeocoder struct {
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration
	Client      *http.Client

	mu        sync.Mutex
	lastReqAt time.Time
	cache     map[string]Place
}

type nominatimReverse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (g *NominatimGeocoder) Reverse(ctx context.Context, c models.Coordinates) (Place, error) {
	if !ValidCoordinates(c) {
		return Place{}, ErrInvalidCoordinates
	}
	if g.Client == nil {
		g.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if g.BaseURL == "" {
		g.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if g.UserAgent == "" {
		g.UserAgent = "citifix-backend"
	}
	if g.MinInterval <= 0 {
		g.MinInterval = time.Second
	}

	key := cacheKey(c)
	g.mu.Lock()
	if g.cache == nil {
		g.cache = map[string]Place{}
	}
	if cached, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return cached, nil
	}
	wait := time.Until(g.lastReqAt.Add(g.MinInterval))
	g.lastReqAt = time.Now().Add(max(wait, 0))
	g.mu.Unlock()
	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Place{}, ctx.Err()
		case <-timer.C:
		}
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%.6f", c.Lat))
	q.Set("lon", fmt.Sprintf("%.6f", c.Lng))
	endpoint := strings.TrimRight(g.BaseURL, "/") + "/reverse?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Place{}, err
	}
	req.Header.Set("User-Agent", g.UserAgent)

	resp, err := g.Client.Do(req)
	if err != nil {
		return Place{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Place{}, fmt.Errorf("nominatim http error: %s", resp.Status)
	}

	var body nominatimReverse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Place{}, err
	}
	place, err := parseReverse(c, body)
	if err != nil {
		return Place{}, err
	}

	g.mu.Lock()
	g.cache[key] = place
	g.mu.Unlock()
	return place, nil
}

func parseReverse(c models.Coordinates, body nominatimReverse) (Place, error) {
	if body.Error != "" || strings.TrimSpace(body.DisplayName) == "" {
		return Place{}, ErrNotFound
	}
	return Place{
		Coordinates: c,
		Label:       models.CoordinateLocation(c).String(),
		AreaLabel:   strings.TrimSpace(body.DisplayName),
	}, nil
}

func cacheKey(c models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f", c.Lat, c.Lng)
}
