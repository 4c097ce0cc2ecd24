package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/xeptore/sermondl/redact"
	"github.com/xeptore/sermondl/unit"
)

const (
	defaultFileName   = "config.yaml"
	fallbackKeyEnvVar = "SERMONAUDIO_FALLBACK_API_KEY" //nolint:gosec
)

type Config struct {
	Log         Log         `yaml:"log"`
	SermonAudio SermonAudio `yaml:"sermonaudio"`
	Auth        Auth        `yaml:"auth"`
	Listing     Listing     `yaml:"listing"`
	Downloader  Downloader  `yaml:"downloader"`
	Timeouts    Timeouts    `yaml:"timeouts"`
	Jobs        Jobs        `yaml:"jobs"`
	State       State       `yaml:"state"`
	Cache       Cache       `yaml:"cache"`
}

func (c *Config) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Dict("log", c.Log.ToDict()).
		Dict("sermonaudio", c.SermonAudio.ToDict()).
		Dict("auth", c.Auth.ToDict()).
		Dict("listing", c.Listing.ToDict()).
		Dict("downloader", c.Downloader.ToDict()).
		Dict("timeouts", c.Timeouts.ToDict()).
		Dict("jobs", c.Jobs.ToDict()).
		Dict("state", c.State.ToDict()).
		Dict("cache", c.Cache.ToDict())
}

func (c *Config) setDefaults() {
	c.Log.setDefaults()
	c.SermonAudio.setDefaults()
	c.Auth.setDefaults()
	c.Listing.setDefaults()
	c.Downloader.setDefaults()
	c.Timeouts.setDefaults()
	c.Jobs.setDefaults()
	c.State.setDefaults()
	c.Cache.setDefaults()
}

func (c *Config) validate() error {
	if err := c.Log.validate(); nil != err {
		return fmt.Errorf("log config validation failed: %v", err)
	}

	if err := c.SermonAudio.validate(); nil != err {
		return fmt.Errorf("sermonaudio config validation failed: %v", err)
	}

	if err := c.Auth.validate(); nil != err {
		return fmt.Errorf("auth config validation failed: %v", err)
	}

	if err := c.Listing.validate(); nil != err {
		return fmt.Errorf("listing config validation failed: %v", err)
	}

	if err := c.Downloader.validate(); nil != err {
		return fmt.Errorf("downloader config validation failed: %v", err)
	}

	if err := c.Timeouts.validate(); nil != err {
		return fmt.Errorf("timeouts config validation failed: %v", err)
	}

	if err := c.Jobs.validate(); nil != err {
		return fmt.Errorf("jobs config validation failed: %v", err)
	}

	return nil
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Log) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("level", c.Level).
		Str("format", c.Format)
}

func (c *Log) setDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}

	if c.Format == "" {
		c.Format = "pretty"
	}
}

func (c *Log) validate() error {
	if !slices.Contains([]string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}, c.Level) {
		return fmt.Errorf(
			"level must be one of: trace, debug, info, warn, error, fatal, panic, got: %s",
			c.Level,
		)
	}

	if !slices.Contains([]string{"json", "pretty"}, c.Format) {
		return fmt.Errorf("format must be 'json' or 'pretty', got: %s", c.Format)
	}

	return nil
}

type SermonAudio struct {
	SiteURL   string `yaml:"site_url"`
	APIURL    string `yaml:"api_url"`
	MediaURL  string `yaml:"media_url"`
	FeedURL   string `yaml:"feed_url"`
	UserAgent string `yaml:"user_agent"`
}

func (c *SermonAudio) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("site_url", c.SiteURL).
		Str("api_url", c.APIURL).
		Str("media_url", c.MediaURL).
		Str("feed_url", c.FeedURL).
		Str("user_agent", c.UserAgent)
}

func (c *SermonAudio) setDefaults() {
	if c.SiteURL == "" {
		c.SiteURL = "https://www.sermonaudio.com"
	}

	if c.APIURL == "" {
		c.APIURL = "https://api.sermonaudio.com"
	}

	if c.MediaURL == "" {
		c.MediaURL = "https://cloud.sermonaudio.com"
	}

	if c.FeedURL == "" {
		c.FeedURL = "https://feed.sermonaudio.com"
	}

	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; sermondl/1.0)"
	}
}

func (c *SermonAudio) validate() error {
	for name, v := range map[string]string{
		"site_url":  c.SiteURL,
		"api_url":   c.APIURL,
		"media_url": c.MediaURL,
		"feed_url":  c.FeedURL,
	} {
		u, err := url.Parse(v)
		if nil != err {
			return fmt.Errorf("%s is not a valid URL: %v", name, err)
		}

		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s must be an http(s) URL, got: %s", name, v)
		}
	}

	return nil
}

type Auth struct {
	CredsDir    string `yaml:"creds_dir"`
	FallbackKey string `yaml:"-"`
}

func (c *Auth) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("creds_dir", c.CredsDir).
		Str("fallback_key", lo.Ternary(c.FallbackKey == "", "", redact.String(c.FallbackKey)))
}

func (c *Auth) setDefaults() {
	if c.CredsDir == "" {
		c.CredsDir = "."
	}
}

func (c *Auth) validate() error {
	if i, err := os.Stat(c.CredsDir); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("creds_dir does not exist")
		}

		return fmt.Errorf("failed to stat creds_dir: %v", err)
	} else if !i.IsDir() {
		return errors.New("creds_dir must be a directory")
	}

	return nil
}

type Listing struct {
	ProbePageSize int      `yaml:"probe_page_size"`
	PageSize      int      `yaml:"page_size"`
	MaxPages      int      `yaml:"max_pages"`
	HTMLMaxPages  int      `yaml:"html_max_pages"`
	PageDelay     Duration `yaml:"page_delay"`
}

func (c *Listing) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Int("probe_page_size", c.ProbePageSize).
		Int("page_size", c.PageSize).
		Int("max_pages", c.MaxPages).
		Int("html_max_pages", c.HTMLMaxPages).
		Str("page_delay", c.PageDelay.String())
}

func (c *Listing) setDefaults() {
	if c.ProbePageSize == 0 {
		c.ProbePageSize = 25
	}

	if c.PageSize == 0 {
		c.PageSize = 100
	}

	if c.MaxPages == 0 {
		c.MaxPages = 100
	}

	if c.HTMLMaxPages == 0 {
		c.HTMLMaxPages = 10
	}

	if c.PageDelay.Duration == 0 {
		c.PageDelay.Duration = 350 * time.Millisecond
	}
}

func (c *Listing) validate() error {
	if c.ProbePageSize < 1 {
		return errors.New("probe_page_size must be greater than 0")
	}

	if c.PageSize < 1 {
		return errors.New("page_size must be greater than 0")
	}

	if c.MaxPages < 1 {
		return errors.New("max_pages must be greater than 0")
	}

	if c.HTMLMaxPages < 1 {
		return errors.New("html_max_pages must be greater than 0")
	}

	if c.PageDelay.Duration < 0 {
		return errors.New("page_delay must not be negative")
	}

	return nil
}

type Downloader struct {
	AudioQuality   string `yaml:"audio_quality"`
	VideoQuality   string `yaml:"video_quality"`
	RenameFromTags bool   `yaml:"rename_from_tags"`
	ChunkSize      int    `yaml:"chunk_size"`
}

func (c *Downloader) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("audio_quality", c.AudioQuality).
		Str("video_quality", c.VideoQuality).
		Bool("rename_from_tags", c.RenameFromTags).
		Int("chunk_size", c.ChunkSize)
}

func (c *Downloader) setDefaults() {
	if c.AudioQuality == "" {
		c.AudioQuality = "low"
	}

	if c.VideoQuality == "" {
		c.VideoQuality = "low"
	}

	if c.ChunkSize == 0 {
		c.ChunkSize = 32 * unit.Kibibyte
	}
}

func (c *Downloader) validate() error {
	if !slices.Contains([]string{"low", "high"}, c.AudioQuality) {
		return fmt.Errorf("audio_quality must be 'low' or 'high', got: %s", c.AudioQuality)
	}

	if !slices.Contains([]string{"low", "high", "1080p"}, c.VideoQuality) {
		return fmt.Errorf("video_quality must be one of: low, high, 1080p, got: %s", c.VideoQuality)
	}

	if c.ChunkSize < 512 {
		return errors.New("chunk_size must be at least 512")
	}

	return nil
}

// Timeouts are in seconds. A zero Download timeout disables the limit, as
// media files can take arbitrarily long to stream.
type Timeouts struct {
	Validate  int `yaml:"validate"`
	FetchPage int `yaml:"fetch_page"`
	Download  int `yaml:"download"`
}

func (c *Timeouts) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Int("validate", c.Validate).
		Int("fetch_page", c.FetchPage).
		Int("download", c.Download)
}

func (c *Timeouts) setDefaults() {
	if c.Validate == 0 {
		c.Validate = 5
	}

	if c.FetchPage == 0 {
		c.FetchPage = 20
	}
}

func (c *Timeouts) validate() error {
	if c.Validate < 0 {
		return errors.New("validate must be greater than 0")
	}

	if c.FetchPage < 0 {
		return errors.New("fetch_page must be greater than 0")
	}

	if c.Download < 0 {
		return errors.New("download must not be negative")
	}

	return nil
}

type Jobs struct {
	Concurrency    int     `yaml:"concurrency"`
	ItemsPerSecond float64 `yaml:"items_per_second"`
}

func (c *Jobs) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Int("concurrency", c.Concurrency).
		Float64("items_per_second", c.ItemsPerSecond)
}

func (c *Jobs) setDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = 2
	}

	if c.ItemsPerSecond == 0 {
		c.ItemsPerSecond = 2
	}
}

func (c *Jobs) validate() error {
	if c.Concurrency < 1 {
		return errors.New("concurrency must be greater than 0")
	}

	if c.ItemsPerSecond < 0 {
		return errors.New("items_per_second must not be negative")
	}

	return nil
}

type State struct {
	Path string `yaml:"path"`
}

func (c *State) ToDict() *zerolog.Event {
	return zerolog.Dict().Str("path", c.Path)
}

func (c *State) setDefaults() {
	if c.Path == "" {
		c.Path = "state.db"
	}
}

type Cache struct {
	MetadataTTL Duration `yaml:"metadata_ttl"`
}

func (c *Cache) ToDict() *zerolog.Event {
	return zerolog.Dict().Str("metadata_ttl", c.MetadataTTL.String())
}

func (c *Cache) setDefaults() {
	if c.MetadataTTL.Duration == 0 {
		c.MetadataTTL.Duration = time.Hour
	}
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); nil != err {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	parsed, err := time.ParseDuration(s)
	if nil != err {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	d.Duration = parsed

	return nil
}

// Load reads filename (config.yaml when empty). A missing default file is not
// an error: every setting has a default.
func Load(filename string) (*Config, error) {
	path := lo.Ternary(len(filename) > 0, filename, defaultFileName)

	var conf Config
	data, err := os.ReadFile(path)
	switch {
	case nil == err:
		if err := yaml.Unmarshal(data, &conf); nil != err {
			return nil, fmt.Errorf("failed to parse config file %s: %v", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && len(filename) == 0:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %v", path, err)
	}

	conf.Auth.FallbackKey = os.Getenv(fallbackKeyEnvVar)
	conf.setDefaults()

	if err := conf.validate(); nil != err {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return &conf, nil
}

// Default returns a configuration with every default applied, without reading any file.
func Default() *Config {
	var conf Config
	conf.setDefaults()

	return &conf
}
