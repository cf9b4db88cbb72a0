package simulate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/shaker/internal/adapters/http/api"
)

// client is a small JSON client for the recommender API.
type client struct {
	http *http.Client
	base string
}

func newClient(base string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, base: base}
}

// do sends one request and decodes a 2xx body into out.
func (c *client) do(ctx context.Context, method, path string, body any, header http.Header, out any) (int, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// drinkIDs pages through /drinks and returns every id.
func (c *client) drinkIDs(ctx context.Context) ([]string, error) {
	const pageSize = 100
	var ids []string
	for page := 1; ; page++ {
		var res api.SearchResponse
		path := "/drinks?page=" + strconv.Itoa(page) + "&page_size=" + strconv.Itoa(pageSize)
		if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &res); err != nil {
			return nil, err
		}
		for _, it := range res.Items {
			ids = append(ids, it.ID)
		}
		if len(res.Items) == 0 || len(ids) >= res.Total {
			return ids, nil
		}
	}
}

// rate posts one rating and reports whether it was created or a duplicate.
func (c *client) rate(ctx context.Context, userID string, r Rating) (string, error) {
	var res api.RatingResponse
	h := http.Header{}
	h.Set(api.IdempotencyHeader, r.IdempotencyKey)
	_, err := c.do(ctx, http.MethodPost, "/ratings", api.RatingRequest{
		UserID:  userID,
		DrinkID: r.DrinkID,
		Rating:  float64(r.Rating),
		Tried:   r.Tried,
	}, h, &res)
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

func (c *client) profile(ctx context.Context, userID string) (api.ProfileResponse, error) {
	var res api.ProfileResponse
	_, err := c.do(ctx, http.MethodGet, "/profile?user_id="+url.QueryEscape(userID), nil, nil, &res)
	return res, err
}

func (c *client) recs(ctx context.Context, userID string, k int) (api.RecsResponse, error) {
	var res api.RecsResponse
	_, err := c.do(ctx, http.MethodPost, "/recs", api.RecsRequest{UserID: userID, K: &k}, nil, &res)
	return res, err
}
