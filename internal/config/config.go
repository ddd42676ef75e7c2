package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LoggingConfig  `yaml:"log"`
	VenueA   VenueConfig    `yaml:"venue_a"`
	VenueB   VenueConfig    `yaml:"venue_b"`
	Strategy StrategyConfig `yaml:"strategy"`
	State    StateConfig    `yaml:"state"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Journal  JournalConfig  `yaml:"journal"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type VenueConfig struct {
	Name    string        `yaml:"name"`
	Kind    string        `yaml:"kind"`
	BaseURL string        `yaml:"base_url"`
	WSURL   string        `yaml:"ws_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type StrategyConfig struct {
	Symbol                string        `yaml:"symbol"`
	TradeAmount           float64       `yaml:"trade_amount"`
	OpenThreshold         float64       `yaml:"open_threshold"`
	CloseThreshold        float64       `yaml:"close_threshold"`
	ProfitDivergenceLimit float64       `yaml:"profit_divergence_limit"`
	TickInterval          time.Duration `yaml:"tick_interval"`
	FillPollAttempts      int           `yaml:"fill_poll_attempts"`
	FillPollInterval      time.Duration `yaml:"fill_poll_interval"`
	ResubscribeBackoff    time.Duration `yaml:"resubscribe_backoff"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

type JournalConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type TelegramConfig struct {
	Enabled                bool          `yaml:"enabled"`
	Token                  string        `yaml:"token"`
	ChatID                 string        `yaml:"chat_id"`
	OperatorEnabled        bool          `yaml:"operator_enabled"`
	OperatorPollInterval   time.Duration `yaml:"operator_poll_interval"`
	OperatorAllowedUserIDs []int64       `yaml:"operator_allowed_user_ids"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.VenueA.Name == "" {
		cfg.VenueA.Name = "aster"
	}
	if cfg.VenueA.Kind == "" {
		cfg.VenueA.Kind = "aster"
	}
	if cfg.VenueA.BaseURL == "" {
		cfg.VenueA.BaseURL = "https://fapi.asterdex.com"
	}
	if cfg.VenueA.WSURL == "" {
		cfg.VenueA.WSURL = "wss://fstream.asterdex.com/ws"
	}
	if cfg.VenueA.Timeout == 0 {
		cfg.VenueA.Timeout = 10 * time.Second
	}
	if cfg.VenueB.Name == "" {
		cfg.VenueB.Name = "bitget"
	}
	if cfg.VenueB.Kind == "" {
		cfg.VenueB.Kind = "bitget"
	}
	if cfg.VenueB.BaseURL == "" {
		cfg.VenueB.BaseURL = "https://api.bitget.com"
	}
	if cfg.VenueB.WSURL == "" {
		cfg.VenueB.WSURL = "wss://ws.bitget.com/v2/ws/public"
	}
	if cfg.VenueB.Timeout == 0 {
		cfg.VenueB.Timeout = 10 * time.Second
	}
	if cfg.Strategy.TickInterval == 0 {
		cfg.Strategy.TickInterval = 100 * time.Millisecond
	}
	if cfg.Strategy.FillPollAttempts == 0 {
		cfg.Strategy.FillPollAttempts = 20
	}
	if cfg.Strategy.FillPollInterval == 0 {
		cfg.Strategy.FillPollInterval = time.Second
	}
	if cfg.Strategy.ResubscribeBackoff == 0 {
		cfg.Strategy.ResubscribeBackoff = 2 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/cross-arb-bot.db"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}
	if cfg.Journal.Schema == "" {
		cfg.Journal.Schema = "public"
	}
	if cfg.Journal.QueueSize == 0 {
		cfg.Journal.QueueSize = 256
	}
	if cfg.Telegram.OperatorPollInterval == 0 {
		cfg.Telegram.OperatorPollInterval = 3 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Strategy.Symbol == "" {
		return errors.New("strategy.symbol is required")
	}
	if cfg.Strategy.TradeAmount <= 0 {
		return errors.New("strategy.trade_amount must be > 0")
	}
	if cfg.Strategy.OpenThreshold <= 0 {
		return errors.New("strategy.open_threshold must be > 0")
	}
	if cfg.Strategy.CloseThreshold < 0 {
		return errors.New("strategy.close_threshold must be >= 0")
	}
	if cfg.Strategy.CloseThreshold >= cfg.Strategy.OpenThreshold {
		return errors.New("strategy.close_threshold must be below strategy.open_threshold")
	}
	if cfg.Strategy.ProfitDivergenceLimit <= 0 {
		return errors.New("strategy.profit_divergence_limit must be > 0")
	}
	if cfg.VenueA.Name == cfg.VenueB.Name {
		return errors.New("venue_a.name and venue_b.name must differ")
	}
	if cfg.Journal.Enabled && cfg.Journal.DSN == "" {
		return errors.New("journal.dsn is required when journal is enabled")
	}
	return nil
}
