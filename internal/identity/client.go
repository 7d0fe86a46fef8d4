package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"blockdrive/internal/domain"
)

// Provider — абстракция над сервисом аутентификации. Сервисы доступа
// получают его через конструктор, в тестах подменяется заглушкой.
type Provider interface {
	GetUserByID(ctx context.Context, id string) (*domain.UserInfo, error)
	IsOrgAdmin(ctx context.Context, userID string, orgID string) (bool, error)
	IsMemberOfOrg(ctx context.Context, userID string, orgID string) (bool, error)
}

// Client — HTTP-клиент сервиса аутентификации
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg *Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.AuthAddr, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) GetUserByID(ctx context.Context, id string) (*domain.UserInfo, error) {
	var user domain.UserInfo
	if err := c.getJSON(ctx, "/v1/users/"+url.PathEscape(id), &user); err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &user, nil
}

func (c *Client) IsOrgAdmin(ctx context.Context, userID string, orgID string) (bool, error) {
	var resp struct {
		IsAdmin bool `json:"is_admin"`
	}
	path := "/v1/orgs/" + url.PathEscape(orgID) + "/members/" + url.PathEscape(userID)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return false, fmt.Errorf("failed to check org admin: %w", err)
	}
	return resp.IsAdmin, nil
}

func (c *Client) IsMemberOfOrg(ctx context.Context, userID string, orgID string) (bool, error) {
	var resp struct {
		IsMember bool `json:"is_member"`
	}
	path := "/v1/orgs/" + url.PathEscape(orgID) + "/members/" + url.PathEscape(userID)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return false, fmt.Errorf("failed to check org membership: %w", err)
	}
	return resp.IsMember, nil
}

// VerifyToken проверяет токен из заголовка Authorization и возвращает id пользователя
func (c *Client) VerifyToken(r *http.Request) (string, error) {
	authToken := r.Header.Get("Authorization")
	if authToken == "" {
		return "", fmt.Errorf("no authorization header")
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, c.baseURL+"/v1/me", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token verification failed: status %d", resp.StatusCode)
	}

	var user domain.UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("failed to decode user info: %w", err)
	}

	return user.ID, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("not found")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
