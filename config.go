package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ProductURL     string `yaml:"product_url"`
	RecipientsFile string `yaml:"recipients_file"`

	BrowserProfilePath string `yaml:"browser_profile_path"`

	// EnvironmentTimeZone is the zone the page's calendar widget runs in.
	// Empty means the host's local zone.
	EnvironmentTimeZone string `yaml:"environment_time_zone"`

	Timing TimingConfig `yaml:"timing"`
	Store  StoreConfig  `yaml:"store"`
	Logger LoggerConfig `yaml:"logger"`

	Headless        bool `yaml:"headless"`
	KeepBrowserOpen bool `yaml:"keep_browser_open"`
	SyncClock       bool `yaml:"sync_clock"`

	DryRun    bool `yaml:"dry_run"`
	DebugMode bool `yaml:"debug_mode"`

	Selectors SelectorConfig `yaml:"selectors"`
	Messages  MessageConfig  `yaml:"messages"`
}

type TimingConfig struct {
	ZoneOffsetHours     int    `yaml:"zone_offset_hours"`
	CalendarRenderDelay int    `yaml:"calendar_render_delay_ms"`
	AddToCartDelay      int    `yaml:"add_to_cart_delay_ms"`
	ResumeRetryDelay    int    `yaml:"resume_retry_delay_ms"`
	BatchMaxSize        int    `yaml:"batch_max_size"`
	CustomAmountValue   string `yaml:"custom_amount_value"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type LoggerConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	LogFile    string `yaml:"log_file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// SelectorConfig holds the storefront's element identifiers. DayControlClass
// is a format string that receives the day-selection key.
type SelectorConfig struct {
	CustomAmount    string `yaml:"custom_amount"`
	Recipients      string `yaml:"recipients"`
	SenderName      string `yaml:"sender_name"`
	Message         string `yaml:"message"`
	DateInput       string `yaml:"date_input"`
	NextMonthClass  string `yaml:"next_month_class"`
	NextMonthIndex  int    `yaml:"next_month_index"`
	DayControlClass string `yaml:"day_control_class"`
	AddToCartButton string `yaml:"add_to_cart_button"`
}

// MessageConfig selects between two sender/message variants. Templates take
// the recipient's first name as their only argument.
type MessageConfig struct {
	FlagField       string `yaml:"flag_field"`
	FlagValue       string `yaml:"flag_value"`
	DefaultSender   string `yaml:"default_sender"`
	DefaultTemplate string `yaml:"default_template"`
	FlaggedSender   string `yaml:"flagged_sender"`
	FlaggedTemplate string `yaml:"flagged_template"`
}

const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
)

func DefaultConfig() *Config {
	userDataDir := getUserDataDir()

	return &Config{
		ProductURL:         "https://www.amazon.com/gp/product/B0D1TK5XVL",
		RecipientsFile:     "recipients.csv",
		BrowserProfilePath: filepath.Join(userDataDir, "browser-profile"),
		Timing: TimingConfig{
			ZoneOffsetHours:     8,
			CalendarRenderDelay: 1500,
			AddToCartDelay:      3000,
			ResumeRetryDelay:    7000,
			BatchMaxSize:        51,
			CustomAmountValue:   "20",
		},
		Store: StoreConfig{
			Backend: StoreBackendFile,
			Path:    filepath.Join(userDataDir, "progress.yaml"),
		},
		Logger: LoggerConfig{
			Level:      "info",
			Format:     "console",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Headless:        false,
		KeepBrowserOpen: true,
		SyncClock:       false,
		DryRun:          false,
		DebugMode:       false,
		Selectors: SelectorConfig{
			CustomAmount:    "gc-order-form-custom-amount",
			Recipients:      "gc-order-form-recipients",
			SenderName:      "gc-order-form-senderName",
			Message:         "gc-order-form-message",
			DateInput:       "gc-order-form-date-val",
			NextMonthClass:  "a-icon a-icon-next",
			NextMonthIndex:  1,
			DayControlClass: "a-cal-d a-cal-d-%d",
			AddToCartButton: "gc-buy-box-atc",
		},
		Messages: MessageConfig{
			FlagField:       "B&G",
			FlagValue:       "X",
			DefaultSender:   "Brendan OBrien",
			DefaultTemplate: "Happy Bday %s from Brendan O",
			FlaggedSender:   "Grayson & Brendan",
			FlaggedTemplate: "Happy Bday %s from Grayson and Brendan",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if config.BrowserProfilePath != "" {
		if err := os.MkdirAll(config.BrowserProfilePath, 0755); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var errs []error
	t := c.Timing
	if t.CalendarRenderDelay < 0 || t.AddToCartDelay < 0 || t.ResumeRetryDelay < 0 {
		errs = append(errs, errors.New("timing delays must not be negative"))
	}
	if t.BatchMaxSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_max_size must be positive, got %d", t.BatchMaxSize))
	}
	switch c.Store.Backend {
	case StoreBackendFile, StoreBackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store path is empty"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves EnvironmentTimeZone, defaulting to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.EnvironmentTimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.EnvironmentTimeZone)
	if err != nil {
		return nil, fmt.Errorf("environment_time_zone: %w", err)
	}
	return loc, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
