package stats

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// LeetCodeStats is the payload of the public leetcode-stats API, passed through unchanged.
type LeetCodeStats struct {
	Status             string           `json:"status"`
	Message            string           `json:"message"`
	TotalSolved        int              `json:"totalSolved"`
	TotalQuestions     int              `json:"totalQuestions"`
	EasySolved         int              `json:"easySolved"`
	TotalEasy          int              `json:"totalEasy"`
	MediumSolved       int              `json:"mediumSolved"`
	TotalMedium        int              `json:"totalMedium"`
	HardSolved         int              `json:"hardSolved"`
	TotalHard          int              `json:"totalHard"`
	AcceptanceRate     float64          `json:"acceptanceRate"`
	Ranking            int              `json:"ranking"`
	ContributionPoints int              `json:"contributionPoints"`
	Reputation         int              `json:"reputation"`
	SubmissionCalendar map[string]int64 `json:"submissionCalendar,omitempty"`
}

// LeetCodeClient fetches solve counts for one user.
type LeetCodeClient struct {
	BaseURL    string
	Username   string
	HTTPClient *http.Client
}

// FetchStats returns the user's stats, failing unless the upstream status is "success".
func (c *LeetCodeClient) FetchStats(ctx context.Context) (*LeetCodeStats, error) {
	if c.Username == "" {
		return nil, errors.New("stats: leetcode username is not configured")
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/" + url.PathEscape(c.Username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build leetcode request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	var out LeetCodeStats
	if err := doJSON(c.HTTPClient, req, &out); err != nil {
		return nil, err
	}
	if out.Status != "success" {
		msg := out.Message
		if msg == "" {
			msg = "failed to retrieve stats"
		}
		return nil, fmt.Errorf("%w: leetcode: %s", ErrUpstream, msg)
	}
	return &out, nil
}
