package config

import "time"

// Config is the top-level configuration. It is loaded once at startup
// and treated as immutable for the process lifetime; in particular
// changing portfolio.initial_capital invalidates every derived
// valuation and requires a restart (which replays the full ledger).
type Config struct {
	App       AppConfig       `toml:"app"`
	Portfolio PortfolioConfig `toml:"portfolio"`
	Rates     RatesConfig     `toml:"rates"`
	Alerts    AlertsConfig    `toml:"alerts"`
	Linker    LinkerConfig    `toml:"linker"`
	Importer  ImporterConfig  `toml:"importer"`
	Notify    NotifyConfig    `toml:"notify"`
	Jobs      JobsConfig      `toml:"jobs"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	DataDir  string `toml:"data_dir"`
}

// PortfolioConfig fixes the capital baseline the ledger is replayed
// against.
type PortfolioConfig struct {
	// ReportingCurrency is the currency all totals are expressed in.
	ReportingCurrency string `toml:"reporting_currency"`
	// InitialCapital maps currency code to the quantity held before the
	// first trade in the ledger.
	InitialCapital map[string]float64 `toml:"initial_capital"`
	// InitialTotalValue is the reporting-currency baseline used for
	// ratio thresholds. Defaults to the reporting-currency entry of
	// InitialCapital.
	InitialTotalValue float64 `toml:"initial_total_value"`
}

type RatesConfig struct {
	// Provider selects the primary source: "quote_api" or
	// "google_finance". The other source acts as fallback.
	Provider                string `toml:"provider"`
	APIURL                  string `toml:"api_url"`
	TimeoutSeconds          int    `toml:"timeout_seconds"`
	StalenessCeilingSeconds int    `toml:"staleness_ceiling_seconds"`
	// Spreads maps currency pair to the one-way spread in price points,
	// applied on top of mid quotes when valuing fills.
	Spreads map[string]float64 `toml:"spreads"`
}

// Threshold is one configured alert rule.
type Threshold struct {
	// Key identifies the persisted alert state row, e.g.
	// "total_assets_loss" or "usd_pnl_loss".
	Key string `toml:"key"`
	// Metric is "total_assets_ratio" or "unrealized_pnl:<CCY>".
	Metric string `toml:"metric"`
	// Direction is "above" or "below".
	Direction string  `toml:"direction"`
	Value     float64 `toml:"value"`
}

type AlertsConfig struct {
	Thresholds []Threshold `toml:"thresholds"`
}

type LinkerConfig struct {
	// MaxDistanceSeconds bounds how far apart a trade and an inference
	// may be and still be linked.
	MaxDistanceSeconds int `toml:"max_distance_seconds"`
	// WindowHours bounds the inference candidate query around the
	// oldest/newest unlinked trade.
	WindowHours int `toml:"window_hours"`
}

type ImporterConfig struct {
	TradeLogPath string `toml:"trade_log_path"`
	// Watch enables the fsnotify watcher that re-imports whenever the
	// trade log file changes.
	Watch bool `toml:"watch"`
}

type NotifyConfig struct {
	Slack    SlackConfig    `toml:"slack"`
	Telegram TelegramConfig `toml:"telegram"`
}

type SlackConfig struct {
	Enabled    bool   `toml:"enabled"`
	WebhookURL string `toml:"webhook_url"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type JobsConfig struct {
	// Interval strings use the scheduler syntax: "15m", "1h", "1d".
	ValuationInterval string `toml:"valuation_interval"`
	LinkInterval      string `toml:"link_interval"`
	IndicatorInterval string `toml:"indicator_interval"`
	// DailyReportHour is the UTC hour (0-23) the daily report fires.
	DailyReportHour int `toml:"daily_report_hour"`
	// WeeklyReportWeekday is 0=Sunday..6=Saturday.
	WeeklyReportWeekday int  `toml:"weekly_report_weekday"`
	RunImmediately      bool `toml:"run_immediately"`
}

func (r RatesConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

func (r RatesConfig) StalenessCeiling() time.Duration {
	if r.StalenessCeilingSeconds <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(r.StalenessCeilingSeconds) * time.Second
}

func (l LinkerConfig) MaxDistance() time.Duration {
	if l.MaxDistanceSeconds <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(l.MaxDistanceSeconds) * time.Second
}

func (l LinkerConfig) Window() time.Duration {
	if l.WindowHours <= 0 {
		return 4 * time.Hour
	}
	return time.Duration(l.WindowHours) * time.Hour
}
