package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultGitHubAPIBaseURL = "https://api.github.com/"

	// The issue timeline endpoint still requires its preview media type.
	timelineAcceptHeader = "application/vnd.github.mockingbird-preview+json"
	searchCommitsAccept  = "application/vnd.github.cloak-preview+json"
	searchDateFormat     = "2006-01-02"
)

// EndpointStatus represents a normalized GitHub API endpoint outcome.
type EndpointStatus string

const (
	// EndpointStatusOK indicates a successful response.
	EndpointStatusOK EndpointStatus = "ok"
	// EndpointStatusForbidden indicates rate limiting or restricted access.
	EndpointStatusForbidden EndpointStatus = "forbidden"
	// EndpointStatusNotFound indicates the resource does not exist or is hidden.
	EndpointStatusNotFound EndpointStatus = "not_found"
	// EndpointStatusUnprocessable indicates request validation failure.
	EndpointStatusUnprocessable EndpointStatus = "unprocessable"
	// EndpointStatusUnavailable indicates a temporary service-side failure.
	EndpointStatusUnavailable EndpointStatus = "unavailable"
	// EndpointStatusUnknown indicates an unclassified non-success status.
	EndpointStatusUnknown EndpointStatus = "unknown"
)

// Issue is one issue snapshot from the repository listing.
type Issue struct {
	Number         int
	Title          string
	State          string
	URL            string
	Assignee       string
	UpdatedAt      time.Time
	HasPullRequest bool
}

// IssuePageResult is the typed result for one page of the issue listing.
type IssuePageResult struct {
	Status   EndpointStatus
	Issues   []Issue
	Page     PageInfo
	Metadata CallMetadata
}

// CommitSearchItem is one commit from the commit search endpoint.
type CommitSearchItem struct {
	SHA        string
	Author     string
	AuthoredAt time.Time
}

// CommitSearchResult is the typed result for commit search by author.
type CommitSearchResult struct {
	Status   EndpointStatus
	Commits  []CommitSearchItem
	Metadata CallMetadata
}

// IssueSearchItem is one issue or pull request from the issue search endpoint.
type IssueSearchItem struct {
	Number    int
	Author    string
	UpdatedAt time.Time
	IsPull    bool
}

// IssueSearchResult is the typed result for issue/PR search.
type IssueSearchResult struct {
	Status   EndpointStatus
	Items    []IssueSearchItem
	Metadata CallMetadata
}

// IssueSearchQuery selects issues or pull requests by author or assignee.
type IssueSearchQuery struct {
	Owner        string
	Repo         string
	Author       string
	Assignee     string
	PullsOnly    bool
	UpdatedAfter time.Time
}

// IssueComment is one comment on a specific issue.
type IssueComment struct {
	ID        int64
	User      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IssueCommentsResult is the typed result for listing one issue's comments.
type IssueCommentsResult struct {
	Status   EndpointStatus
	Comments []IssueComment
	Metadata CallMetadata
}

// TimelineEvent is one timeline event on a specific issue.
type TimelineEvent struct {
	Event     string
	Actor     string
	CreatedAt time.Time
}

// IssueTimelineResult is the typed result for listing one issue's timeline.
type IssueTimelineResult struct {
	Status   EndpointStatus
	Events   []TimelineEvent
	Metadata CallMetadata
}

// DataClient is a typed GitHub REST client for the endpoints the activity
// engine and crawler consume.
type DataClient struct {
	baseURL       *url.URL
	requestClient *Client
}

// NewDataClient creates a typed data client over the pacing request client.
func NewDataClient(baseURL string, requestClient *Client) (*DataClient, error) {
	if requestClient == nil {
		return nil, fmt.Errorf("request client is required")
	}

	parsed, err := parseAPIBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &DataClient{
		baseURL:       parsed,
		requestClient: requestClient,
	}, nil
}

// ListRepoIssues lists one page of open issues with pagination metadata.
func (c *DataClient) ListRepoIssues(ctx context.Context, owner, repo string, page, perPage int) (IssuePageResult, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return IssuePageResult{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return IssuePageResult{}, fmt.Errorf("repo is required")
	}
	if page <= 0 {
		return IssuePageResult{}, fmt.Errorf("page must be > 0")
	}
	if perPage <= 0 || perPage > 100 {
		return IssuePageResult{}, fmt.Errorf("per page must be in 1..100")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo), "issues")
	query := reqURL.Query()
	query.Set("state", "open")
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return IssuePageResult{}, fmt.Errorf("build list issues request: %w", err)
	}

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return IssuePageResult{}, fmt.Errorf("list issues request failed: %w", err)
	}
	if resp == nil {
		return IssuePageResult{}, fmt.Errorf("list issues request failed: nil response")
	}

	status := endpointStatusFromHTTP(resp.StatusCode)
	result := IssuePageResult{
		Status:   status,
		Metadata: metadata,
	}
	if status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	result.Page = ParseLinkHeader(resp.Header.Get("Link"))

	var payload []issuePayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return IssuePageResult{}, fmt.Errorf("decode list issues response: %w", err)
	}

	for _, issue := range payload {
		typed := Issue{
			Number:         issue.Number,
			Title:          issue.Title,
			State:          issue.State,
			URL:            issue.HTMLURL,
			UpdatedAt:      parseRFC3339(issue.UpdatedAt),
			HasPullRequest: issue.PullRequest != nil,
		}
		if issue.Assignee != nil {
			typed.Assignee = issue.Assignee.Login
		}
		result.Issues = append(result.Issues, typed)
	}
	return result, nil
}

// SearchCommits searches commits by author in one repository with a
// committer-date lower bound.
func (c *DataClient) SearchCommits(ctx context.Context, author, owner, repo string, since time.Time) (CommitSearchResult, error) {
	trimmedAuthor := strings.TrimSpace(author)
	if trimmedAuthor == "" {
		return CommitSearchResult{}, fmt.Errorf("author is required")
	}
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(repo) == "" {
		return CommitSearchResult{}, fmt.Errorf("owner and repo are required")
	}

	terms := []string{
		"author:" + trimmedAuthor,
		"repo:" + strings.TrimSpace(owner) + "/" + strings.TrimSpace(repo),
	}
	if !since.IsZero() {
		terms = append(terms, "committer-date:>"+since.UTC().Format(searchDateFormat))
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "search", "commits")
	query := reqURL.Query()
	query.Set("q", strings.Join(terms, " "))
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return CommitSearchResult{}, fmt.Errorf("build search commits request: %w", err)
	}
	req.Header.Set("Accept", searchCommitsAccept)

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return CommitSearchResult{}, fmt.Errorf("search commits request failed: %w", err)
	}
	if resp == nil {
		return CommitSearchResult{}, fmt.Errorf("search commits request failed: nil response")
	}

	status := endpointStatusFromHTTP(resp.StatusCode)
	result := CommitSearchResult{
		Status:   status,
		Metadata: metadata,
	}
	if status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload commitSearchPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return CommitSearchResult{}, fmt.Errorf("decode search commits response: %w", err)
	}

	for _, item := range payload.Items {
		typed := CommitSearchItem{
			SHA:        item.SHA,
			AuthoredAt: parseRFC3339(item.Commit.Author.Date),
		}
		if item.Author != nil {
			typed.Author = item.Author.Login
		}
		result.Commits = append(result.Commits, typed)
	}
	return result, nil
}

// SearchIssues searches issues or pull requests by author or assignee with
// an updated-at lower bound.
func (c *DataClient) SearchIssues(ctx context.Context, q IssueSearchQuery) (IssueSearchResult, error) {
	if strings.TrimSpace(q.Owner) == "" || strings.TrimSpace(q.Repo) == "" {
		return IssueSearchResult{}, fmt.Errorf("owner and repo are required")
	}
	if strings.TrimSpace(q.Author) == "" && strings.TrimSpace(q.Assignee) == "" {
		return IssueSearchResult{}, fmt.Errorf("author or assignee is required")
	}

	terms := make([]string, 0, 4)
	if author := strings.TrimSpace(q.Author); author != "" {
		terms = append(terms, "author:"+author)
	}
	if assignee := strings.TrimSpace(q.Assignee); assignee != "" {
		terms = append(terms, "assignee:"+assignee)
	}
	terms = append(terms, "repo:"+strings.TrimSpace(q.Owner)+"/"+strings.TrimSpace(q.Repo))
	if q.PullsOnly {
		terms = append(terms, "type:pr")
	}
	if !q.UpdatedAfter.IsZero() {
		terms = append(terms, "updated:>"+q.UpdatedAfter.UTC().Format(searchDateFormat))
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "search", "issues")
	query := reqURL.Query()
	query.Set("q", strings.Join(terms, " "))
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return IssueSearchResult{}, fmt.Errorf("build search issues request: %w", err)
	}

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return IssueSearchResult{}, fmt.Errorf("search issues request failed: %w", err)
	}
	if resp == nil {
		return IssueSearchResult{}, fmt.Errorf("search issues request failed: nil response")
	}

	status := endpointStatusFromHTTP(resp.StatusCode)
	result := IssueSearchResult{
		Status:   status,
		Metadata: metadata,
	}
	if status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload issueSearchPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return IssueSearchResult{}, fmt.Errorf("decode search issues response: %w", err)
	}

	for _, item := range payload.Items {
		typed := IssueSearchItem{
			Number:    item.Number,
			UpdatedAt: parseRFC3339(item.UpdatedAt),
			IsPull:    item.PullRequest != nil,
		}
		if item.User != nil {
			typed.Author = item.User.Login
		}
		result.Items = append(result.Items, typed)
	}
	return result, nil
}

// ListIssueComments lists comments for one issue.
func (c *DataClient) ListIssueComments(ctx context.Context, owner, repo string, number int) (IssueCommentsResult, error) {
	if err := validateIssueRef(owner, repo, number); err != nil {
		return IssueCommentsResult{}, err
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(
		reqURL.Path,
		"repos",
		url.PathEscape(strings.TrimSpace(owner)),
		url.PathEscape(strings.TrimSpace(repo)),
		"issues",
		strconv.Itoa(number),
		"comments",
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return IssueCommentsResult{}, fmt.Errorf("build list issue comments request: %w", err)
	}

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return IssueCommentsResult{}, fmt.Errorf("list issue comments request failed: %w", err)
	}
	if resp == nil {
		return IssueCommentsResult{}, fmt.Errorf("list issue comments request failed: nil response")
	}

	status := endpointStatusFromHTTP(resp.StatusCode)
	result := IssueCommentsResult{
		Status:   status,
		Metadata: metadata,
	}
	if status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []issueCommentPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return IssueCommentsResult{}, fmt.Errorf("decode list issue comments response: %w", err)
	}

	for _, comment := range payload {
		typed := IssueComment{
			ID:        comment.ID,
			CreatedAt: parseRFC3339(comment.CreatedAt),
			UpdatedAt: parseRFC3339(comment.UpdatedAt),
		}
		if comment.User != nil {
			typed.User = comment.User.Login
		}
		result.Comments = append(result.Comments, typed)
	}
	return result, nil
}

// ListIssueTimeline lists timeline events for one issue.
func (c *DataClient) ListIssueTimeline(ctx context.Context, owner, repo string, number int) (IssueTimelineResult, error) {
	if err := validateIssueRef(owner, repo, number); err != nil {
		return IssueTimelineResult{}, err
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(
		reqURL.Path,
		"repos",
		url.PathEscape(strings.TrimSpace(owner)),
		url.PathEscape(strings.TrimSpace(repo)),
		"issues",
		strconv.Itoa(number),
		"timeline",
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return IssueTimelineResult{}, fmt.Errorf("build list issue timeline request: %w", err)
	}
	req.Header.Set("Accept", timelineAcceptHeader)

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return IssueTimelineResult{}, fmt.Errorf("list issue timeline request failed: %w", err)
	}
	if resp == nil {
		return IssueTimelineResult{}, fmt.Errorf("list issue timeline request failed: nil response")
	}

	status := endpointStatusFromHTTP(resp.StatusCode)
	result := IssueTimelineResult{
		Status:   status,
		Metadata: metadata,
	}
	if status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []timelineEventPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return IssueTimelineResult{}, fmt.Errorf("decode list issue timeline response: %w", err)
	}

	for _, event := range payload {
		typed := TimelineEvent{
			Event:     event.Event,
			CreatedAt: parseRFC3339(event.CreatedAt),
		}
		if event.Actor != nil {
			typed.Actor = event.Actor.Login
		}
		result.Events = append(result.Events, typed)
	}
	return result, nil
}

func validateIssueRef(owner, repo string, number int) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("owner is required")
	}
	if strings.TrimSpace(repo) == "" {
		return fmt.Errorf("repo is required")
	}
	if number <= 0 {
		return fmt.Errorf("issue number must be > 0")
	}
	return nil
}

func parseAPIBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultGitHubAPIBaseURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func (c *DataClient) cloneBaseURL() *url.URL {
	cloned := *c.baseURL
	return &cloned
}

func joinURLPath(base string, segments ...string) string {
	trimmedBase := strings.TrimSuffix(base, "/")
	builder := strings.Builder{}
	builder.WriteString(trimmedBase)
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(strings.TrimPrefix(segment, "/"))
	}
	return builder.String()
}

func endpointStatusFromHTTP(statusCode int) EndpointStatus {
	switch statusCode {
	case http.StatusForbidden:
		return EndpointStatusForbidden
	case http.StatusNotFound:
		return EndpointStatusNotFound
	case http.StatusUnprocessableEntity:
		return EndpointStatusUnprocessable
	}
	if statusCode >= 200 && statusCode <= 299 {
		return EndpointStatusOK
	}
	if statusCode >= 500 {
		return EndpointStatusUnavailable
	}
	return EndpointStatusUnknown
}

func decodeJSONAndClose(resp *http.Response, target any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

func parseRFC3339(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

type issuePayload struct {
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	State       string          `json:"state"`
	HTMLURL     string          `json:"html_url"`
	UpdatedAt   string          `json:"updated_at"`
	Assignee    *userPayload    `json:"assignee"`
	PullRequest json.RawMessage `json:"pull_request"`
}

type commitSearchPayload struct {
	Items []commitSearchItemPayload `json:"items"`
}

type commitSearchItemPayload struct {
	SHA    string       `json:"sha"`
	Author *userPayload `json:"author"`
	Commit struct {
		Author struct {
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

type issueSearchPayload struct {
	Items []issueSearchItemPayload `json:"items"`
}

type issueSearchItemPayload struct {
	Number      int             `json:"number"`
	User        *userPayload    `json:"user"`
	UpdatedAt   string          `json:"updated_at"`
	PullRequest json.RawMessage `json:"pull_request"`
}

type issueCommentPayload struct {
	ID        int64        `json:"id"`
	User      *userPayload `json:"user"`
	CreatedAt string       `json:"created_at"`
	UpdatedAt string       `json:"updated_at"`
}

type timelineEventPayload struct {
	Event     string       `json:"event"`
	Actor     *userPayload `json:"actor"`
	CreatedAt string       `json:"created_at"`
}

type userPayload struct {
	Login string `json:"login"`
}
