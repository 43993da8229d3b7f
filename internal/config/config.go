// Package config defines audit configuration options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// BackendKind selects the primary page analysis backend.
type BackendKind string

const (
	BackendDataForSEO BackendKind = "dataforseo" // DataForSEO On-Page API
	BackendNone       BackendKind = "none"       // Basic scrape only
)

// RenderMode defines how pages are fetched for the basic scrape.
type RenderMode string

const (
	RenderHTML RenderMode = "html" // Plain HTTP GET
	RenderJS   RenderMode = "js"   // JavaScript rendering (Chromium)
)

// DefaultUserAgent is a desktop browser user agent. Some sites reject
// requests carrying the Go client's default agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// AuditConfig holds all configuration for a domain audit.
type AuditConfig struct {
	// === Crawl Limits ===

	// Maximum number of pages to discover and analyze
	MaxPages int `json:"max_pages"`

	// Maximum link depth from the seed (0 = only the page cap applies)
	MaxDepth int `json:"max_depth"`

	// === Fetching ===

	// User-Agent string
	UserAgent string `json:"user_agent"`

	// Request timeout
	Timeout time.Duration `json:"timeout"`

	// Maximum number of redirects to follow
	MaxRedirects int `json:"max_redirects"`

	// Maximum response size in bytes
	MaxResponseSize int64 `json:"max_response_size"`

	// Render mode: html, js
	RenderMode RenderMode `json:"render_mode"`

	// Render timeout (for JS rendering)
	RenderTimeout time.Duration `json:"render_timeout"`

	// Chromium executable path (empty = default lookup)
	ChromiumPath string `json:"chromium_path"`

	// Respect robots.txt when deciding restricted access
	RespectRobotsTxt bool `json:"respect_robots_txt"`

	// File extensions that are never treated as pages
	ExcludeExtensions []string `json:"exclude_extensions,omitempty"`

	// === Batching ===

	// Pages analyzed concurrently per batch
	BatchSize int `json:"batch_size"`

	// Pause between batches
	BatchDelay time.Duration `json:"batch_delay"`

	// Global request rate during analysis (0 = unlimited)
	RequestsPerSecond float64 `json:"requests_per_second"`

	// === Analysis Backend ===

	Backend    BackendKind       `json:"backend"`
	DataForSEO *DataForSEOConfig `json:"dataforseo,omitempty"`
	Cache      *CacheConfig      `json:"cache,omitempty"`

	// === Storage & Logging ===

	// SQLite database path (empty = do not persist)
	DatabasePath string `json:"database_path"`

	// Log level: debug, info, warn, error
	LogLevel string `json:"log_level"`

	// Development logging (console encoder)
	LogDevelopment bool `json:"log_development"`
}

// DataForSEOConfig holds credentials for the DataForSEO API.
type DataForSEOConfig struct {
	BaseURL  string        `json:"base_url"`
	Login    string        `json:"login,omitempty"`
	Password string        `json:"password,omitempty"`
	Timeout  time.Duration `json:"timeout"`
}

// CacheConfig configures the in-memory analysis cache.
type CacheConfig struct {
	Enabled bool          `json:"enabled"`
	TTL     time.Duration `json:"ttl"`
	MaxMB   int           `json:"max_mb"`
}

// DefaultConfig returns an AuditConfig with sensible defaults.
func DefaultConfig() *AuditConfig {
	return &AuditConfig{
		// Limits
		MaxPages: 20,
		MaxDepth: 0,

		// Fetching
		UserAgent:        DefaultUserAgent,
		Timeout:          15 * time.Second,
		MaxRedirects:     10,
		MaxResponseSize:  10 * 1024 * 1024, // 10MB
		RenderMode:       RenderHTML,
		RenderTimeout:    30 * time.Second,
		RespectRobotsTxt: true,
		ExcludeExtensions: []string{
			".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
			".zip", ".rar", ".tar", ".gz", ".7z",
			".mp3", ".mp4", ".avi", ".mov", ".wmv", ".flv",
			".jpg", ".jpeg", ".png", ".gif", ".bmp", ".ico", ".svg", ".webp",
			".css", ".js", ".woff", ".woff2", ".ttf", ".eot",
		},

		// Batching
		BatchSize:         5,
		BatchDelay:        time.Second,
		RequestsPerSecond: 0,

		// Backend
		Backend: BackendDataForSEO,
		DataForSEO: &DataForSEOConfig{
			BaseURL: "https://api.dataforseo.com",
			Timeout: 30 * time.Second,
		},
		Cache: &CacheConfig{
			Enabled: false,
			TTL:     time.Hour,
			MaxMB:   64,
		},

		LogLevel: "info",
	}
}

// Validate checks if the configuration is valid.
func (c *AuditConfig) Validate() error {
	if c.MaxPages < 1 {
		c.MaxPages = 1
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = 0
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.Timeout < time.Second {
		c.Timeout = time.Second
	}
	if c.MaxRedirects < 0 {
		c.MaxRedirects = 0
	}
	if c.RenderTimeout < time.Second {
		c.RenderTimeout = time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	switch c.Backend {
	case BackendDataForSEO, BackendNone:
	case "":
		c.Backend = BackendNone
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	switch c.RenderMode {
	case RenderHTML, RenderJS:
	case "":
		c.RenderMode = RenderHTML
	default:
		return fmt.Errorf("unknown render mode %q", c.RenderMode)
	}

	if c.Backend == BackendDataForSEO && c.DataForSEO == nil {
		return fmt.Errorf("backend %q requires dataforseo settings", c.Backend)
	}
	if c.Cache == nil {
		c.Cache = &CacheConfig{}
	}
	return nil
}

// HasDataForSEOCredentials reports whether the primary backend can be used.
func (c *AuditConfig) HasDataForSEOCredentials() bool {
	return c.DataForSEO != nil && c.DataForSEO.Login != "" && c.DataForSEO.Password != ""
}

// ApplyEnv overrides secrets and deployment settings from the environment.
func (c *AuditConfig) ApplyEnv() {
	if v := os.Getenv("DATAFORSEO_LOGIN"); v != "" {
		if c.DataForSEO == nil {
			c.DataForSEO = DefaultConfig().DataForSEO
		}
		c.DataForSEO.Login = v
	}
	if v := os.Getenv("DATAFORSEO_PASSWORD"); v != "" {
		if c.DataForSEO == nil {
			c.DataForSEO = DefaultConfig().DataForSEO
		}
		c.DataForSEO.Password = v
	}
	if v := os.Getenv("SEOAUDIT_DB"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("SEOAUDIT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SEOAUDIT_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxPages = n
		}
	}
}

// Save saves the configuration to a JSON file.
func (c *AuditConfig) Save(filePath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load loads configuration from a JSON file.
func Load(filePath string) (*AuditConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Clone creates a deep copy of the configuration.
func (c *AuditConfig) Clone() *AuditConfig {
	clone := *c

	clone.ExcludeExtensions = make([]string, len(c.ExcludeExtensions))
	copy(clone.ExcludeExtensions, c.ExcludeExtensions)

	if c.DataForSEO != nil {
		d := *c.DataForSEO
		clone.DataForSEO = &d
	}
	if c.Cache != nil {
		cc := *c.Cache
		clone.Cache = &cc
	}

	return &clone
}

// Presets for common audit scenarios
var (
	// PresetFast trades politeness for speed
	PresetFast = &AuditConfig{
		MaxPages:          50,
		BatchSize:         10,
		BatchDelay:        200 * time.Millisecond,
		Timeout:           10 * time.Second,
		RenderMode:        RenderHTML,
		RespectRobotsTxt:  false,
		Backend:           BackendNone,
		UserAgent:         DefaultUserAgent,
		RequestsPerSecond: 0,
	}

	// PresetPolite is optimized for polite crawling
	PresetPolite = &AuditConfig{
		MaxPages:          20,
		BatchSize:         2,
		BatchDelay:        2 * time.Second,
		Timeout:           30 * time.Second,
		RenderMode:        RenderHTML,
		RespectRobotsTxt:  true,
		Backend:           BackendNone,
		UserAgent:         DefaultUserAgent,
		RequestsPerSecond: 1,
	}
)

// FromPreset returns the default configuration with the crawl settings
// of the named preset ("fast" or "polite") applied.
func FromPreset(name string) (*AuditConfig, error) {
	var p *AuditConfig
	switch name {
	case "fast":
		p = PresetFast
	case "polite":
		p = PresetPolite
	default:
		return nil, fmt.Errorf("unknown preset %q", name)
	}

	cfg := DefaultConfig()
	cfg.MaxPages = p.MaxPages
	cfg.BatchSize = p.BatchSize
	cfg.BatchDelay = p.BatchDelay
	cfg.Timeout = p.Timeout
	cfg.RenderMode = p.RenderMode
	cfg.RespectRobotsTxt = p.RespectRobotsTxt
	cfg.Backend = p.Backend
	cfg.RequestsPerSecond = p.RequestsPerSecond
	return cfg, nil
}
