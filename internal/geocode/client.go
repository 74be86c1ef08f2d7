// Package geocode предоставляет клиент внешнего сервиса геокодирования
// с API в стиле Nominatim (/search и /reverse).
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/hamper-storefront/internal/delivery"
)

// ErrRateLimited возвращается при ответе 429.
var ErrRateLimited = errors.New("geocoder: rate limited")

// RateLimitError уточняет ErrRateLimited значением заголовка Retry-After.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Client инкапсулирует HTTP-взаимодействие с сервисом геокодирования.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewClient создаёт HTTP-клиент для обращения к геокодеру по указанному адресу.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Geocode возвращает координаты кандидатов для адреса в порядке релевантности.
func (c *Client) Geocode(ctx context.Context, address string) ([]delivery.Point, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")

	var places []place
	if err := c.get(ctx, "/search", q, &places); err != nil {
		return nil, err
	}

	points := make([]delivery.Point, 0, len(places))
	for _, p := range places {
		lat, err := strconv.ParseFloat(p.Lat, 64)
		if err != nil {
			continue
		}
		lng, err := strconv.ParseFloat(p.Lon, 64)
		if err != nil {
			continue
		}
		points = append(points, delivery.Point{Lat: lat, Lng: lng})
	}
	return points, nil
}

// Reverse возвращает форматированный адрес точки.
func (c *Client) Reverse(ctx context.Context, p delivery.Point) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(p.Lng, 'f', -1, 64))
	q.Set("format", "json")

	var res place
	if err := c.get(ctx, "/reverse", q, &res); err != nil {
		return "", err
	}
	if res.DisplayName == "" {
		return "", delivery.ErrAddressNotFound
	}
	return res.DisplayName, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("geocoder client not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ delivery.Geocoder = (*Client)(nil)
