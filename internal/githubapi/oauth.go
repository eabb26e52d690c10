package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultGitHubWebBaseURL = "https://github.com"

// OAuthExchanger performs the GitHub OAuth web-flow code exchange.
type OAuthExchanger struct {
	webBaseURL   string
	clientID     string
	clientSecret string
	doer         HTTPDoer
}

// NewOAuthExchanger creates a code exchanger for one OAuth app.
func NewOAuthExchanger(webBaseURL, clientID, clientSecret string, doer HTTPDoer) (*OAuthExchanger, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("oauth client id is required")
	}
	if strings.TrimSpace(clientSecret) == "" {
		return nil, fmt.Errorf("oauth client secret is required")
	}
	if doer == nil {
		doer = http.DefaultClient
	}

	trimmedBaseURL := strings.TrimSpace(webBaseURL)
	if trimmedBaseURL == "" {
		trimmedBaseURL = defaultGitHubWebBaseURL
	}
	return &OAuthExchanger{
		webBaseURL:   strings.TrimSuffix(trimmedBaseURL, "/"),
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		doer:         doer,
	}, nil
}

// AuthorizeURL builds the GitHub authorization redirect target.
func (e *OAuthExchanger) AuthorizeURL(redirectURI string) string {
	query := url.Values{}
	query.Set("client_id", e.clientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("scope", "user:email,repo")
	return e.webBaseURL + "/login/oauth/authorize?" + query.Encode()
}

// ExchangeCode trades an authorization code for an access token.
func (e *OAuthExchanger) ExchangeCode(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("authorization code is required")
	}

	body, err := json.Marshal(map[string]string{
		"client_id":     e.clientID,
		"client_secret": e.clientSecret,
		"code":          code,
	})
	if err != nil {
		return "", fmt.Errorf("marshal oauth exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.webBaseURL+"/login/oauth/access_token",
		strings.NewReader(string(body)),
	)
	if err != nil {
		return "", fmt.Errorf("build oauth exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.doer.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth exchange returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode oauth exchange response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("oauth exchange returned no access token")
	}
	return payload.AccessToken, nil
}
