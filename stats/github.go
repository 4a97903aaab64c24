package stats

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ErrUpstream wraps non-2xx responses from the stats providers.
var ErrUpstream = errors.New("stats: upstream error")

const userAgent = "Portfolio-App"

// GitHubStats is the aggregated profile summary served to the site.
type GitHubStats struct {
	Username     string           `json:"username"`
	Profile      GitHubProfile    `json:"profile"`
	Stats        GitHubTotals     `json:"stats"`
	Repositories []GitHubRepoCard `json:"repositories"`
}

// GitHubProfile mirrors the user fields of the upstream payload. Nullable
// upstream fields stay null.
type GitHubProfile struct {
	Name        *string   `json:"name"`
	Bio         *string   `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	PublicRepos int       `json:"public_repos"`
	CreatedAt   time.Time `json:"created_at"`
}

type GitHubTotals struct {
	TotalStars   int             `json:"totalStars"`
	TotalForks   int             `json:"totalForks"`
	TotalRepos   int             `json:"totalRepos"`
	TopLanguages []LanguageShare `json:"topLanguages"`
}

type LanguageShare struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

type GitHubRepoCard struct {
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	URL         string    `json:"url"`
	Language    *string   `json:"language"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// githubUser and githubRepo mirror the subset of the REST v3 payloads we read.
type githubUser struct {
	Name        *string   `json:"name"`
	Bio         *string   `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	PublicRepos int       `json:"public_repos"`
	CreatedAt   time.Time `json:"created_at"`
}

type githubRepo struct {
	Name            string    `json:"name"`
	Description     *string   `json:"description"`
	HTMLURL         string    `json:"html_url"`
	Language        *string   `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const (
	topLanguageCount = 5
	repoCardCount    = 6
)

// GitHubClient fetches public profile data from the GitHub REST API.
type GitHubClient struct {
	BaseURL    string
	Username   string
	Token      string // optional, raises the upstream quota
	HTTPClient *http.Client
}

// FetchStats loads the user and its most recently updated repositories and aggregates them.
func (c *GitHubClient) FetchStats(ctx context.Context) (*GitHubStats, error) {
	if c.Username == "" {
		return nil, errors.New("stats: github username is not configured")
	}

	var user githubUser
	userPath := "/users/" + url.PathEscape(c.Username)
	if err := c.get(ctx, userPath, &user); err != nil {
		return nil, err
	}

	var repos []githubRepo
	if err := c.get(ctx, userPath+"/repos?per_page=100&sort=updated", &repos); err != nil {
		return nil, err
	}

	return aggregateGitHub(c.Username, user, repos), nil
}

func (c *GitHubClient) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return doJSON(c.HTTPClient, req, dst)
}

func aggregateGitHub(username string, user githubUser, repos []githubRepo) *GitHubStats {
	out := &GitHubStats{
		Username: username,
		Profile: GitHubProfile{
			Name:        user.Name,
			Bio:         user.Bio,
			AvatarURL:   user.AvatarURL,
			Followers:   user.Followers,
			Following:   user.Following,
			PublicRepos: user.PublicRepos,
			CreatedAt:   user.CreatedAt,
		},
		Repositories: make([]GitHubRepoCard, 0, min(len(repos), repoCardCount)),
	}
	out.Stats.TotalRepos = user.PublicRepos

	languages := make(map[string]int)
	for _, repo := range repos {
		out.Stats.TotalStars += repo.StargazersCount
		out.Stats.TotalForks += repo.ForksCount
		if repo.Language != nil && *repo.Language != "" {
			languages[*repo.Language]++
		}
	}

	shares := make([]LanguageShare, 0, len(languages))
	for name, count := range languages {
		shares = append(shares, LanguageShare{
			Name:       name,
			Count:      count,
			Percentage: int(math.Round(float64(count) / float64(len(repos)) * 100)),
		})
	}
	slices.SortFunc(shares, func(a, b LanguageShare) int {
		if n := cmp.Compare(b.Count, a.Count); n != 0 {
			return n
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(shares) > topLanguageCount {
		shares = shares[:topLanguageCount]
	}
	out.Stats.TopLanguages = shares

	for _, repo := range repos[:min(len(repos), repoCardCount)] {
		out.Repositories = append(out.Repositories, GitHubRepoCard{
			Name:        repo.Name,
			Description: repo.Description,
			URL:         repo.HTMLURL,
			Language:    repo.Language,
			Stars:       repo.StargazersCount,
			Forks:       repo.ForksCount,
			UpdatedAt:   repo.UpdatedAt,
		})
	}
	return out
}

// doJSON executes req and decodes a 2xx JSON body into dst.
func doJSON(client *http.Client, req *http.Request, dst any) error {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: %s %s", ErrUpstream, req.URL.Host, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Host, err)
	}
	return nil
}
