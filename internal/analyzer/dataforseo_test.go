package analyzer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/config"
)

const instantPagesOK = `{
  "status_code": 20000,
  "status_message": "Ok.",
  "tasks": [{
    "status_code": 20000,
    "status_message": "Ok.",
    "result": [{
      "crawl_progress": "finished",
      "items_count": 1,
      "items": [{
        "url": "https://example.com/",
        "status_code": 200,
        "meta": {
          "title": "Example Domain Home Page For Testing Things",
          "description": "An example.",
          "canonical": "https://example.com/",
          "htags": {"h1": ["Example"], "h2": ["A", "B"]},
          "images_count": 3,
          "internal_links_count": 7,
          "external_links_count": 2,
          "charset": 65001,
          "content": {"plain_text_word_count": 412.0}
        },
        "page_timing": {"duration_time": 850},
        "checks": {"is_https": true, "no_image_alt": true}
      }]
    }]
  }]
}`

func newDataForSEOServer(t *testing.T, body string, status int) (*DataForSEOBackend, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "login" || pass != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, instantPagesPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		raw, _ := io.ReadAll(r.Body)
		var tasks []instantPagesTask
		assert.NoError(t, json.Unmarshal(raw, &tasks))
		if assert.Len(t, tasks, 1) {
			assert.False(t, tasks[0].EnableJavascript)
		}

		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	b := NewDataForSEOBackend(&config.DataForSEOConfig{BaseURL: srv.URL + "/", Login: "login", Password: "pw"}, nil)
	return b, srv
}

func TestDataForSEOParsesInstantPages(t *testing.T) {
	b, _ := newDataForSEOServer(t, instantPagesOK, http.StatusOK)

	res, err := b.Analyze(context.Background(), "https://example.com/")
	require.NoError(t, err)

	pr, ok := res.(*PrimaryResult)
	require.True(t, ok)
	assert.Equal(t, "An example.", pr.Description)
	assert.Equal(t, 3, pr.ImagesCount)
	assert.Equal(t, 1, pr.ImagesMissingAlt)
	assert.Equal(t, 7, pr.InternalLinks)
	assert.Equal(t, 412, pr.WordCount)
	assert.Equal(t, int64(850), pr.LoadTimeMs)
	assert.True(t, pr.IsHTTPS)
	assert.True(t, pr.Charset)

	page := Normalize(pr)
	assert.Equal(t, Headings{H1: 1, H2: 2}, page.Headings)
	assert.Equal(t, []string{"Example"}, page.HeadingTexts.H1)
	assert.True(t, page.Technical.ViewportUnknown)
	assert.True(t, page.Technical.LanguageUnknown)
}

func TestDataForSEOPageIsNotFlaggedForUnreportedSignals(t *testing.T) {
	b, _ := newDataForSEOServer(t, instantPagesOK, http.StatusOK)

	res, err := b.Analyze(context.Background(), "https://example.com/")
	require.NoError(t, err)

	page := Finalize(Normalize(res))
	for _, issue := range page.Issues {
		assert.NotEqual(t, IssueMissingViewport, issue.Code)
		assert.NotEqual(t, IssueMissingLanguage, issue.Code)
	}
	assert.False(t, page.MissingViewport())
	assert.False(t, page.MissingLanguage())
}

func TestDataForSEOCouldNotCrawl(t *testing.T) {
	body := `{"status_code":20000,"tasks":[{"status_code":20000,"result":[{"crawl_progress":"finished","items_count":0,"items":[]}]}]}`
	b, _ := newDataForSEOServer(t, body, http.StatusOK)

	res, err := b.Analyze(context.Background(), "https://example.com/")
	require.NoError(t, err)
	u, ok := res.(*Unavailable)
	require.True(t, ok)
	assert.ErrorIs(t, u.Reason, ErrBackendUnavailable)
	assert.False(t, u.Restricted)
}

func TestDataForSEORestrictedItem(t *testing.T) {
	body := `{"status_code":20000,"tasks":[{"status_code":20000,"result":[{"crawl_progress":"finished","items_count":1,"items":[{"status_code":403}]}]}]}`
	b, _ := newDataForSEOServer(t, body, http.StatusOK)

	res, err := b.Analyze(context.Background(), "https://example.com/")
	require.NoError(t, err)
	u, ok := res.(*Unavailable)
	require.True(t, ok)
	assert.True(t, u.Restricted)
}

func TestDataForSEOErrorsAreUnavailable(t *testing.T) {
	cases := map[string]struct {
		body   string
		status int
	}{
		"http error":     {`oops`, http.StatusInternalServerError},
		"malformed json": {`{"status_code":`, http.StatusOK},
		"api error":      {`{"status_code":40100,"status_message":"not authorized"}`, http.StatusOK},
		"task error":     {`{"status_code":20000,"tasks":[{"status_code":40501,"status_message":"invalid field"}]}`, http.StatusOK},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			b, _ := newDataForSEOServer(t, c.body, c.status)
			_, err := b.Analyze(context.Background(), "https://example.com/")
			assert.ErrorIs(t, err, ErrBackendUnavailable)
		})
	}
}

func TestDataForSEOBadCredentials(t *testing.T) {
	b, _ := newDataForSEOServer(t, instantPagesOK, http.StatusOK)
	b.password = "wrong"

	_, err := b.Analyze(context.Background(), "https://example.com/")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
