// Package remote предоставляет клиент удалённого сервиса корзины.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/hamper-storefront/internal/model"
)

const (
	cartPath        = "/api/user/cart"
	authCookieName  = "auth_token"
	requestIDHeader = "X-Request-ID"
	defaultTimeout  = 10 * time.Second
)

// ErrUnauthorized возвращается, если сервис отклонил учётные данные владельца.
var ErrUnauthorized = errors.New("remote cart: unauthorized")

// Client инкапсулирует HTTP-взаимодействие с сервисом корзины.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент сервиса корзины. Нулевой timeout заменяется на 10 секунд.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
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

// GetCart возвращает позиции корзины владельца.
func (c *Client) GetCart(ctx context.Context, owner model.Owner) ([]model.LineItem, error) {
	resp, err := c.do(ctx, http.MethodGet, owner, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var lines []model.LineItem
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return lines, nil
}

// ReplaceCart полностью заменяет содержимое удалённой корзины.
func (c *Client) ReplaceCart(ctx context.Context, owner model.Owner, lines []model.LineItem) error {
	if lines == nil {
		lines = []model.LineItem{}
	}

	body, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, owner, body)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// ClearCart удаляет удалённую корзину.
func (c *Client) ClearCart(ctx context.Context, owner model.Owner) error {
	resp, err := c.do(ctx, http.MethodDelete, owner, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) do(ctx context.Context, method string, owner model.Owner, body []byte) (*http.Response, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("remote cart client not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+cartPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(requestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner.Token != "" {
		req.AddCookie(&http.Cookie{Name: authCookieName, Value: owner.Token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return resp, nil
}
