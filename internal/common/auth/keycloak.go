package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "financing-portal/internal/common/errors"
	httpclient "financing-portal/internal/common/http"
)

// KeycloakClient is a service-account client for the realm admin API. The
// portal only reads from the directory: it resolves customers by email and
// looks up user details by id.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *httpclient.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type User struct {
	ID            string `json:"id,omitempty"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Username      string `json:"username"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpclient.NewClient(15 * time.Second),
	}
}

// token returns a cached client-credentials token, refreshing it 30s before
// expiry.
func (k *KeycloakClient) token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && time.Now().Before(k.tokenExpiry) {
		return k.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("keycloak token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	k.accessToken = tr.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - 30*time.Second)
	return k.accessToken, nil
}

func (k *KeycloakClient) adminGet(ctx context.Context, path string, out interface{}) (int, error) {
	token, err := k.token(ctx)
	if err != nil {
		return 0, apperrors.NewAuthenticationError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+"/admin/realms/"+k.realm+path, nil)
	if err != nil {
		return 0, fmt.Errorf("build keycloak request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return 0, apperrors.NewExternalServiceError("keycloak", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		stdErr := apperrors.NewExternalServiceError("keycloak", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
		stdErr.Retryable = httpclient.IsTransientStatus(resp.StatusCode)
		return resp.StatusCode, stdErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode keycloak response: %w", err)
	}
	return resp.StatusCode, nil
}

// GetUserByEmail performs an exact email search. It returns (nil, nil) when
// no user has that address.
func (k *KeycloakClient) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var users []User
	if _, err := k.adminGet(ctx, "/users?exact=true&email="+url.QueryEscape(email), &users); err != nil {
		return nil, err
	}

	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, nil
}

func (k *KeycloakClient) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	status, err := k.adminGet(ctx, "/users/"+url.PathEscape(userID), &user)
	if status == http.StatusNotFound {
		return nil, apperrors.NewResourceNotFoundError("keycloak", "user "+userID)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
