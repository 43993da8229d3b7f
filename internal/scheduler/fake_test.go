package scheduler

import (
	"context"
	"errors"

	"github.com/spider-crawler/seoaudit/internal/fetcher"
)

// unreachable is a page source where every fetch fails.
type unreachable struct{}

func (unreachable) Fetch(_ context.Context, rawURL string) *fetcher.Response {
	return &fetcher.Response{RequestURL: rawURL, Error: errors.New("connection refused")}
}
