package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lucasfontes/teamsbridge/internal/teams"
)

// Credentials identify the Azure AD app registration the client
// authenticates as.
type Credentials struct {
	ClientID     string
	ClientSecret string
	TenantID     string
}

// LoadCredentials reads Graph credentials from the environment.
func LoadCredentials() (*Credentials, error) {
	creds := &Credentials{
		ClientID:     os.Getenv("TEAMSBRIDGE_GRAPH_CLIENT_ID"),
		ClientSecret: os.Getenv("TEAMSBRIDGE_GRAPH_CLIENT_SECRET"),
		TenantID:     os.Getenv("TEAMSBRIDGE_GRAPH_TENANT_ID"),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.TenantID == "" {
		return nil, fmt.Errorf("graph credentials not configured (TEAMSBRIDGE_GRAPH_CLIENT_ID/_SECRET/_TENANT_ID)")
	}
	return creds, nil
}

// Client is a stateless Microsoft Graph presence client: plain
// request/response, no connection to keep alive. The only state is the
// cached client-credentials token, renewed shortly before expiry.
type Client struct {
	creds      Credentials
	httpClient *http.Client
	loginBase  string
	graphBase  string
	logf       func(format string, args ...interface{})

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a Graph presence client. logf may be nil.
func NewClient(creds Credentials, logf func(string, ...interface{})) *Client {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Client{
		creds:      creds,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		loginBase:  "https://login.microsoftonline.com",
		graphBase:  "https://graph.microsoft.com",
		logf:       logf,
	}
}

// accessToken returns a valid bearer token, fetching a fresh one when
// the cached token is within five minutes of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-5*time.Minute)) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
		"scope":         {"https://graph.microsoft.com/.default"},
	}
	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.loginBase, c.creds.TenantID)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: %s", resp.Status)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.token = result.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	c.logf("graph: access token renewed, expires in %ds", result.ExpiresIn)
	return c.token, nil
}

// GetPresence returns the availability Graph reports for the user.
func (c *Client) GetPresence(ctx context.Context, userID string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1.0/users/%s/presence", c.graphBase, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("presence request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("presence request failed: %s", resp.Status)
	}

	var result struct {
		Availability string `json:"availability"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("parse presence response: %w", err)
	}
	return result.Availability, nil
}

// SetStatusMessage publishes a status through the Graph presence API.
func (c *Client) SetStatusMessage(ctx context.Context, userID string, st teams.Status) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"statusMessage": map[string]string{
			"message": "",
			"status":  st.Token,
		},
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v1.0/users/%s/presence/setStatusMessage", c.graphBase, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("set status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("set status failed: %s", resp.Status)
	}
	c.logf("graph: status for %s set to %s", userID, st.Token)
	return nil
}
