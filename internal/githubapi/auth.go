package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// Auth modes for the service's own GitHub credential.
const (
	AuthModeToken = "token"
	AuthModeApp   = "app"
)

// AuthConfig configures the service GitHub credential.
type AuthConfig struct {
	Mode           string
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	Timeout        time.Duration
	BaseTransport  http.RoundTripper
}

// NewAuthenticatedHTTPClient creates an HTTP client carrying the configured
// credential: a personal access token or a GitHub App installation.
func NewAuthenticatedHTTPClient(cfg AuthConfig) (*http.Client, error) {
	baseTransport := cfg.BaseTransport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}

	switch strings.TrimSpace(cfg.Mode) {
	case AuthModeToken, "":
		token := strings.TrimSpace(cfg.Token)
		if token == "" {
			return nil, fmt.Errorf("token is required for token auth")
		}
		return &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
				Base:   baseTransport,
			},
			Timeout: cfg.Timeout,
		}, nil
	case AuthModeApp:
		if cfg.AppID <= 0 {
			return nil, fmt.Errorf("app id must be > 0")
		}
		if cfg.InstallationID <= 0 {
			return nil, fmt.Errorf("installation id must be > 0")
		}
		if strings.TrimSpace(cfg.PrivateKeyPath) == "" {
			return nil, fmt.Errorf("private key path is required")
		}
		transport, err := ghinstallation.NewKeyFromFile(baseTransport, cfg.AppID, cfg.InstallationID, cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("create github app transport: %w", err)
		}
		return &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// User is the authenticated user profile shape exposed to callers.
type User struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// UserRepo is one repository of the authenticated user.
type UserRepo struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Description     string    `json:"description"`
	Private         bool      `json:"private"`
	HTMLURL         string    `json:"html_url"`
	UpdatedAt       time.Time `json:"updated_at"`
	Language        string    `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	OpenIssuesCount int       `json:"open_issues_count"`
}

// UserClient serves the per-caller user endpoints through go-github using
// the caller-supplied token.
type UserClient struct {
	gh *github.Client
}

// NewUserClient creates a go-github backed client for one caller token,
// with optional API base URL override.
func NewUserClient(token, apiBaseURL string) (*UserClient, error) {
	trimmedToken := strings.TrimSpace(token)
	if trimmedToken == "" {
		return nil, fmt.Errorf("token is required")
	}

	client := github.NewClient(nil).WithAuthToken(trimmedToken)
	trimmedBaseURL := strings.TrimSpace(apiBaseURL)
	if trimmedBaseURL != "" {
		parsedURL, err := url.Parse(trimmedBaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse github api base url: %w", err)
		}
		if parsedURL.Scheme == "" || parsedURL.Host == "" {
			return nil, fmt.Errorf("parse github api base url: missing scheme or host")
		}
		if !strings.HasSuffix(parsedURL.Path, "/") {
			parsedURL.Path += "/"
		}
		client.BaseURL = parsedURL
	}
	return &UserClient{gh: client}, nil
}

// GetAuthenticatedUser reads the token's own user profile.
func (c *UserClient) GetAuthenticatedUser(ctx context.Context) (User, error) {
	ghUser, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return User{}, fmt.Errorf("get authenticated user: %w", err)
	}
	return User{
		ID:          ghUser.GetID(),
		Login:       ghUser.GetLogin(),
		Name:        ghUser.GetName(),
		Email:       ghUser.GetEmail(),
		AvatarURL:   ghUser.GetAvatarURL(),
		HTMLURL:     ghUser.GetHTMLURL(),
		PublicRepos: ghUser.GetPublicRepos(),
		Followers:   ghUser.GetFollowers(),
		Following:   ghUser.GetFollowing(),
	}, nil
}

// ListUserRepos lists the token's repositories sorted by recent update.
func (c *UserClient) ListUserRepos(ctx context.Context) ([]UserRepo, error) {
	ghRepos, _, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("list user repos: %w", err)
	}

	repos := make([]UserRepo, 0, len(ghRepos))
	for _, ghRepo := range ghRepos {
		repos = append(repos, UserRepo{
			ID:              ghRepo.GetID(),
			Name:            ghRepo.GetName(),
			FullName:        ghRepo.GetFullName(),
			Description:     ghRepo.GetDescription(),
			Private:         ghRepo.GetPrivate(),
			HTMLURL:         ghRepo.GetHTMLURL(),
			UpdatedAt:       ghRepo.GetUpdatedAt().Time,
			Language:        ghRepo.GetLanguage(),
			StargazersCount: ghRepo.GetStargazersCount(),
			ForksCount:      ghRepo.GetForksCount(),
			OpenIssuesCount: ghRepo.GetOpenIssuesCount(),
		})
	}
	return repos, nil
}
