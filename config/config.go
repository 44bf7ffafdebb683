package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/hyperlev/internal/clients"
)

const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"

	// EnvPrivateKey hex private key of a locally held wallet.
	EnvPrivateKey = "HL_PRIVATE_KEY"
	// EnvAddress address of a watch-only wallet.
	EnvAddress = "HL_ADDRESS"
)

type Config struct {
	Network           string
	APIURL            string
	DefaultMarket     string
	DefaultLeverage   int
	FeeRate           decimal.Decimal
	Slippage          decimal.Decimal
	SigningTimeout    time.Duration
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	ConfirmOrders     bool

	PriceInterval          time.Duration
	AccountInterval        time.Duration
	FundingInterval        time.Duration
	ClockInterval          time.Duration
	BookInterval           time.Duration
	CatalogRefreshInterval time.Duration

	WebAddr    string
	JournalDir string

	Log LogConfig

	// secrets, never written to yaml
	PrivateKey string
	Address    string
}

// LogConfig logger settings.
type LogConfig struct {
	Level      string `yaml:"level,omitempty"`
	Format     string `yaml:"format,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// IntervalsTmp polling intervals as they appear in yaml.
type IntervalsTmp struct {
	Prices         time.Duration `yaml:"prices,omitempty"`
	Account        time.Duration `yaml:"account,omitempty"`
	Funding        time.Duration `yaml:"funding,omitempty"`
	Clock          time.Duration `yaml:"clock,omitempty"`
	OrderBook      time.Duration `yaml:"orderbook,omitempty"`
	CatalogRefresh time.Duration `yaml:"catalog_refresh,omitempty"`
}

// ConfigTmp yaml representation of Config.
type ConfigTmp struct {
	Network              string        `yaml:"network,omitempty"`
	APIURL               string        `yaml:"api_url,omitempty"`
	DefaultMarket        string        `yaml:"default_market,omitempty"`
	DefaultLeverageStr   string        `yaml:"default_leverage,omitempty"`
	FeeRateStr           string        `yaml:"fee_rate,omitempty"`
	SlippageStr          string        `yaml:"slippage,omitempty"`
	SigningTimeout       time.Duration `yaml:"signing_timeout,omitempty"`
	RequestTimeout       time.Duration `yaml:"request_timeout,omitempty"`
	RequestsPerSecondStr string        `yaml:"requests_per_second,omitempty"`
	ConfirmOrders        *bool         `yaml:"confirm_orders,omitempty"`
	Intervals            IntervalsTmp  `yaml:"intervals,omitempty"`
	WebAddr              *string       `yaml:"web_addr,omitempty"`
	JournalDir           *string       `yaml:"journal_dir,omitempty"`
	Log                  LogConfig     `yaml:"log,omitempty"`
}

// Default returns the mainnet configuration.
func Default() Config {
	return Config{
		Network:                NetworkMainnet,
		APIURL:                 clients.MainnetAPIURL,
		DefaultLeverage:        10,
		FeeRate:                decimal.RequireFromString("0.0003"),
		Slippage:               decimal.RequireFromString("0.005"),
		SigningTimeout:         15 * time.Second,
		RequestTimeout:         10 * time.Second,
		RequestsPerSecond:      10,
		ConfirmOrders:          true,
		PriceInterval:          2 * time.Second,
		AccountInterval:        5 * time.Second,
		FundingInterval:        10 * time.Second,
		ClockInterval:          time.Second,
		BookInterval:           time.Second,
		CatalogRefreshInterval: 0,
		WebAddr:                ":8080",
		JournalDir:             "./wal/orders",
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

// Load reads the yaml file at path over the defaults. An empty path returns
// the defaults. Secrets are taken from the environment.
func Load(path string) (Config, error) {
	conf := Default()
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		var tmp ConfigTmp
		if err := yaml.Unmarshal(f, &tmp); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
		if err := apply(&conf, tmp); err != nil {
			return Config{}, err
		}
	}

	conf.PrivateKey = strings.TrimSpace(os.Getenv(EnvPrivateKey))
	conf.Address = strings.TrimSpace(os.Getenv(EnvAddress))

	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func apply(conf *Config, c ConfigTmp) error {
	if c.Network != "" {
		conf.Network = strings.ToLower(c.Network)
		conf.APIURL = APIURLFor(conf.Network)
	}
	if c.APIURL != "" {
		conf.APIURL = c.APIURL
	}
	if c.DefaultMarket != "" {
		conf.DefaultMarket = strings.ToUpper(c.DefaultMarket)
	}
	if c.DefaultLeverageStr != "" {
		lev, err := decimal.NewFromString(c.DefaultLeverageStr)
		if err != nil || !lev.IsInteger() {
			return fmt.Errorf("incorrect 'default_leverage' param in yaml config (must be an integer): %q", c.DefaultLeverageStr)
		}
		conf.DefaultLeverage = int(lev.IntPart())
	}
	if c.FeeRateStr != "" {
		fee, err := decimal.NewFromString(c.FeeRateStr)
		if err != nil {
			return fmt.Errorf("incorrect 'fee_rate' param in yaml config (must be a decimal), error: %w", err)
		}
		conf.FeeRate = fee
	}
	if c.SlippageStr != "" {
		slippage, err := decimal.NewFromString(c.SlippageStr)
		if err != nil {
			return fmt.Errorf("incorrect 'slippage' param in yaml config (must be a decimal), error: %w", err)
		}
		conf.Slippage = slippage
	}
	if c.SigningTimeout > 0 {
		conf.SigningTimeout = c.SigningTimeout
	}
	if c.RequestTimeout > 0 {
		conf.RequestTimeout = c.RequestTimeout
	}
	if c.RequestsPerSecondStr != "" {
		rps, err := decimal.NewFromString(c.RequestsPerSecondStr)
		if err != nil {
			return fmt.Errorf("incorrect 'requests_per_second' param in yaml config (must be a number), error: %w", err)
		}
		conf.RequestsPerSecond = rps.InexactFloat64()
	}
	if c.ConfirmOrders != nil {
		conf.ConfirmOrders = *c.ConfirmOrders
	}

	setDuration(&conf.PriceInterval, c.Intervals.Prices)
	setDuration(&conf.AccountInterval, c.Intervals.Account)
	setDuration(&conf.FundingInterval, c.Intervals.Funding)
	setDuration(&conf.ClockInterval, c.Intervals.Clock)
	setDuration(&conf.BookInterval, c.Intervals.OrderBook)
	setDuration(&conf.CatalogRefreshInterval, c.Intervals.CatalogRefresh)

	if c.WebAddr != nil {
		conf.WebAddr = *c.WebAddr
	}
	if c.JournalDir != nil {
		conf.JournalDir = *c.JournalDir
	}

	if c.Log.Level != "" {
		conf.Log.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		conf.Log.Format = c.Log.Format
	}
	if c.Log.File != "" {
		conf.Log.File = c.Log.File
	}
	if c.Log.MaxSizeMB > 0 {
		conf.Log.MaxSizeMB = c.Log.MaxSizeMB
	}
	if c.Log.MaxBackups > 0 {
		conf.Log.MaxBackups = c.Log.MaxBackups
	}
	if c.Log.MaxAgeDays > 0 {
		conf.Log.MaxAgeDays = c.Log.MaxAgeDays
	}
	return nil
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.Network {
	case NetworkMainnet, NetworkTestnet:
	default:
		return fmt.Errorf("unknown network %q, expected %s or %s", c.Network, NetworkMainnet, NetworkTestnet)
	}
	if c.APIURL == "" {
		return errors.New("api_url must not be empty")
	}
	if c.DefaultLeverage < 1 {
		return fmt.Errorf("default_leverage must be >= 1, got %d", c.DefaultLeverage)
	}
	if c.FeeRate.IsNegative() || c.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("fee_rate must be in [0, 1), got %s", c.FeeRate)
	}
	if !c.Slippage.IsPositive() || c.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("slippage must be in (0, 1), got %s", c.Slippage)
	}
	for name, d := range map[string]time.Duration{
		"signing_timeout":     c.SigningTimeout,
		"request_timeout":     c.RequestTimeout,
		"intervals.prices":    c.PriceInterval,
		"intervals.account":   c.AccountInterval,
		"intervals.funding":   c.FundingInterval,
		"intervals.clock":     c.ClockInterval,
		"intervals.orderbook": c.BookInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// IsTestnet reports whether the testnet is configured.
func (c Config) IsTestnet() bool { return c.Network == NetworkTestnet }

// APIURLFor default API URL of network.
func APIURLFor(network string) string {
	if network == NetworkTestnet {
		return clients.TestnetAPIURL
	}
	return clients.MainnetAPIURL
}

// ToTmp yaml representation of c, without secrets.
func (c Config) ToTmp() ConfigTmp {
	confirm := c.ConfirmOrders
	web := c.WebAddr
	journal := c.JournalDir
	return ConfigTmp{
		Network:              c.Network,
		APIURL:               c.APIURL,
		DefaultMarket:        c.DefaultMarket,
		DefaultLeverageStr:   fmt.Sprintf("%d", c.DefaultLeverage),
		FeeRateStr:           c.FeeRate.String(),
		SlippageStr:          c.Slippage.String(),
		SigningTimeout:       c.SigningTimeout,
		RequestTimeout:       c.RequestTimeout,
		RequestsPerSecondStr: decimal.NewFromFloat(c.RequestsPerSecond).String(),
		ConfirmOrders:        &confirm,
		Intervals: IntervalsTmp{
			Prices:         c.PriceInterval,
			Account:        c.AccountInterval,
			Funding:        c.FundingInterval,
			Clock:          c.ClockInterval,
			OrderBook:      c.BookInterval,
			CatalogRefresh: c.CatalogRefreshInterval,
		},
		WebAddr:    &web,
		JournalDir: &journal,
		Log:        c.Log,
	}
}
