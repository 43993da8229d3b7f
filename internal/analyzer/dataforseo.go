package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/logging"
)

const instantPagesPath = "/v3/on_page/instant_pages"

// DataForSEO status code for a successful request or task.
const dataForSEOOK = 20000

// DataForSEOBackend analyzes pages with the DataForSEO On-Page
// instant_pages endpoint.
type DataForSEOBackend struct {
	baseURL  string
	login    string
	password string
	client   *http.Client
	logger   *zap.Logger
}

// NewDataForSEOBackend creates a DataForSEO client.
func NewDataForSEOBackend(cfg *config.DataForSEOConfig, logger *zap.Logger) *DataForSEOBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DataForSEOBackend{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		login:    cfg.Login,
		password: cfg.Password,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.OrNop(logger),
	}
}

// Name implements Backend.
func (b *DataForSEOBackend) Name() Source { return SourceDataForSEO }

type instantPagesTask struct {
	URL              string `json:"url"`
	EnableJavascript bool   `json:"enable_javascript"`
}

type instantPagesResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Tasks         []struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
		Result        []struct {
			CrawlProgress string            `json:"crawl_progress"`
			ItemsCount    int               `json:"items_count"`
			Items         []instantPageItem `json:"items"`
		} `json:"result"`
	} `json:"tasks"`
}

type instantPageItem struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Meta       *struct {
		Title              string              `json:"title"`
		Description        string              `json:"description"`
		Canonical          string              `json:"canonical"`
		Htags              map[string][]string `json:"htags"`
		ImagesCount        int                 `json:"images_count"`
		InternalLinksCount int                 `json:"internal_links_count"`
		ExternalLinksCount int                 `json:"external_links_count"`
		Charset            int                 `json:"charset"`
		Content            *struct {
			PlainTextWordCount float64 `json:"plain_text_word_count"`
		} `json:"content"`
	} `json:"meta"`
	PageTiming *struct {
		DurationTime float64 `json:"duration_time"`
	} `json:"page_timing"`
	Checks map[string]bool `json:"checks"`
}

// Analyze implements Backend.
func (b *DataForSEOBackend) Analyze(ctx context.Context, pageURL string) (Result, error) {
	payload, err := json.Marshal([]instantPagesTask{{URL: pageURL, EnableJavascript: false}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+instantPagesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(b.login, b.password)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	b.logger.Debug("dataforseo response",
		zap.String("url", pageURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: HTTP %d", ErrBackendUnavailable, resp.StatusCode)
	}

	var body instantPagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrBackendUnavailable, err)
	}

	return interpretInstantPages(pageURL, &body)
}

// interpretInstantPages maps an instant_pages payload onto a Result. Any
// shape other than a finished crawl with one item is unavailable.
func interpretInstantPages(pageURL string, body *instantPagesResponse) (Result, error) {
	if body.StatusCode != dataForSEOOK {
		return nil, fmt.Errorf("%w: %d %s", ErrBackendUnavailable, body.StatusCode, body.StatusMessage)
	}
	if len(body.Tasks) == 0 {
		return nil, fmt.Errorf("%w: no tasks", ErrBackendUnavailable)
	}
	task := body.Tasks[0]
	if task.StatusCode != dataForSEOOK {
		return nil, fmt.Errorf("%w: task %d %s", ErrBackendUnavailable, task.StatusCode, task.StatusMessage)
	}
	if len(task.Result) == 0 {
		return nil, fmt.Errorf("%w: empty result", ErrBackendUnavailable)
	}

	result := task.Result[0]
	if result.ItemsCount == 0 || len(result.Items) == 0 {
		return &Unavailable{
			URL:    pageURL,
			Reason: fmt.Errorf("%w: could not crawl (progress %q)", ErrBackendUnavailable, result.CrawlProgress),
		}, nil
	}

	item := result.Items[0]
	switch item.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests, http.StatusUnavailableForLegalReasons:
		return &Unavailable{
			URL:        pageURL,
			Reason:     fmt.Errorf("%w: page answered %d", ErrRestrictedAccess, item.StatusCode),
			Restricted: true,
		}, nil
	}
	if item.Meta == nil {
		return &Unavailable{URL: pageURL, Reason: fmt.Errorf("%w: no page meta", ErrBackendUnavailable)}, nil
	}

	meta := item.Meta
	pr := &PrimaryResult{
		URL:           pageURL,
		Title:         strings.TrimSpace(meta.Title),
		Description:   strings.TrimSpace(meta.Description),
		Canonical:     meta.Canonical,
		HTags:         meta.Htags,
		ImagesCount:   meta.ImagesCount,
		InternalLinks: meta.InternalLinksCount,
		ExternalLinks: meta.ExternalLinksCount,
		IsHTTPS:       item.Checks["is_https"],
		Charset:       meta.Charset > 0 || !item.Checks["no_encoding_meta_tag"],
	}
	// The API only flags that some image lacks alt text
	if item.Checks["no_image_alt"] && meta.ImagesCount > 0 {
		pr.ImagesMissingAlt = 1
	}
	if meta.Content != nil {
		pr.WordCount = int(meta.Content.PlainTextWordCount)
	}
	if item.PageTiming != nil {
		pr.LoadTimeMs = int64(item.PageTiming.DurationTime)
	}
	if pr.Canonical == "" && item.Checks["canonical"] {
		pr.Canonical = pageURL
	}
	return pr, nil
}
