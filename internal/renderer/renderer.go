// Package renderer fetches pages through headless Chromium so that
// client-side rendered markup reaches the parser.
package renderer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/fetcher"
	"github.com/spider-crawler/seoaudit/internal/logging"
)

// Renderer renders pages with Chromium. It implements fetcher.Source.
type Renderer struct {
	mu     sync.Mutex
	closed bool

	timeout   time.Duration
	allocator context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger

	// Browser pool for concurrent rendering
	browserPool chan *browser
	cancels     []context.CancelFunc
}

// browser is one Chromium instance. Its context is never given a deadline:
// chromedp ties the process lifetime to the context of the first Run.
type browser struct {
	ctx     context.Context
	started bool
}

// start launches the browser process once.
func (b *browser) start() error {
	if b.started {
		return nil
	}
	if err := chromedp.Run(b.ctx); err != nil {
		return err
	}
	b.started = true
	return nil
}

var _ fetcher.Source = (*Renderer)(nil)

// NewRenderer creates a renderer with one browser per concurrently
// analyzed page. Chromium is started lazily on first use.
func NewRenderer(cfg *config.AuditConfig, logger *zap.Logger) *Renderer {
	poolSize := cfg.BatchSize
	if poolSize < 1 {
		poolSize = 1
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.UserAgent(cfg.UserAgent),
	)

	// Use custom Chromium path if specified
	if cfg.ChromiumPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromiumPath))
	}

	r := &Renderer{
		timeout:     cfg.RenderTimeout,
		logger:      logging.OrNop(logger),
		browserPool: make(chan *browser, poolSize),
	}
	r.allocator, r.cancel = chromedp.NewExecAllocator(context.Background(), opts...)

	for i := 0; i < poolSize; i++ {
		ctx, cancel := chromedp.NewContext(r.allocator)
		r.browserPool <- &browser{ctx: ctx}
		r.cancels = append(r.cancels, cancel)
	}

	return r
}

// Fetch renders rawURL and returns the rendered DOM as the body.
func (r *Renderer) Fetch(ctx context.Context, rawURL string) *fetcher.Response {
	start := time.Now()
	resp := &fetcher.Response{RequestURL: rawURL}
	defer func() {
		resp.ResponseTime = time.Since(start)
		if resp.Error != nil {
			r.logger.Debug("render failed", zap.String("url", rawURL), zap.Error(resp.Error))
		}
	}()

	var b *browser
	select {
	case b = <-r.browserPool:
	case <-ctx.Done():
		resp.Error = ctx.Err()
		return resp
	}
	defer func() { r.browserPool <- b }()

	if err := b.start(); err != nil {
		resp.Error = fmt.Errorf("failed to start browser: %w", err)
		return resp
	}

	// Each page gets its own tab, closed when the render is done.
	tab, closeTab := chromedp.NewContext(b.ctx)
	defer closeTab()

	timeoutCtx, cancel := context.WithTimeout(tab, r.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	doc := &documentInfo{}
	chromedp.ListenTarget(timeoutCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Type == network.ResourceTypeDocument {
				doc.record(int(e.Response.Status), e.Response.MimeType, e.Response.Headers)
			}
		case *page.EventJavascriptDialogOpening:
			// Dismiss any dialogs
			go chromedp.Run(timeoutCtx, page.HandleJavaScriptDialog(true))
		}
	})

	if err := chromedp.Run(timeoutCtx, network.Enable()); err != nil {
		resp.Error = fmt.Errorf("failed to enable network: %w", err)
		return resp
	}

	var html, finalURL string
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		resp.Error = fmt.Errorf("render failed: %w", err)
		return resp
	}

	doc.apply(resp)
	resp.FinalURL = finalURL
	resp.Body = []byte(html)
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Error = &fetcher.StatusError{Code: resp.StatusCode}
	}
	return resp
}

// Close shuts down every browser.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for _, cancel := range r.cancels {
		cancel()
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

// documentInfo captures the main document response seen on the wire.
type documentInfo struct {
	mu          sync.Mutex
	seen        bool
	status      int
	contentType string
	headers     http.Header
}

// record keeps the first document response; later ones belong to frames.
func (d *documentInfo) record(status int, mimeType string, headers map[string]interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seen {
		return
	}
	d.seen = true
	d.status = status
	d.contentType = strings.ToLower(mimeType)
	d.headers = make(http.Header, len(headers))
	for k, v := range headers {
		if s, ok := v.(string); ok {
			d.headers.Set(k, s)
		}
	}
}

func (d *documentInfo) apply(resp *fetcher.Response) {
	d.mu.Lock()
	defer d.mu.Unlock()

	resp.StatusCode = d.status
	resp.Status = http.StatusText(d.status)
	resp.ContentType = d.contentType
	resp.Headers = d.headers
	if resp.Headers == nil {
		resp.Headers = make(http.Header)
	}
}
