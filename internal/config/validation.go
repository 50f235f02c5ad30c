package config

import (
	"fmt"
	"strings"

	"fxledger/internal/pkg/fxpair"
)

func validate(c *Config) error {
	if err := c.Portfolio.validate(); err != nil {
		return err
	}
	if err := c.Rates.validate(); err != nil {
		return err
	}
	if err := c.Alerts.validate(c.Portfolio); err != nil {
		return err
	}
	if err := c.Jobs.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (p PortfolioConfig) validate() error {
	if len(p.ReportingCurrency) != 3 {
		return fmt.Errorf("portfolio.reporting_currency must be a 3-letter code, got %q", p.ReportingCurrency)
	}
	if len(p.InitialCapital) == 0 {
		return fmt.Errorf("portfolio.initial_capital requires at least one currency")
	}
	for ccy, amount := range p.InitialCapital {
		if len(ccy) != 3 {
			return fmt.Errorf("portfolio.initial_capital has invalid currency code %q", ccy)
		}
		if amount < 0 {
			return fmt.Errorf("portfolio.initial_capital.%s cannot be negative", ccy)
		}
	}
	if p.InitialTotalValue < 0 {
		return fmt.Errorf("portfolio.initial_total_value cannot be negative")
	}
	return nil
}

func (r RatesConfig) validate() error {
	switch r.Provider {
	case "quote_api", "google_finance":
	default:
		return fmt.Errorf("rates.provider must be quote_api or google_finance, got %q", r.Provider)
	}
	if r.Provider == "quote_api" && strings.TrimSpace(r.APIURL) == "" {
		return fmt.Errorf("rates.api_url is required for the quote_api provider")
	}
	for pair := range r.Spreads {
		if _, err := fxpair.Parse(pair); err != nil {
			return fmt.Errorf("rates.spreads: %w", err)
		}
	}
	return nil
}

func (a AlertsConfig) validate(p PortfolioConfig) error {
	seen := make(map[string]struct{}, len(a.Thresholds))
	for i, th := range a.Thresholds {
		if strings.TrimSpace(th.Key) == "" {
			return fmt.Errorf("alerts.thresholds[%d] missing key", i)
		}
		if _, dup := seen[th.Key]; dup {
			return fmt.Errorf("alerts.thresholds has duplicate key %q", th.Key)
		}
		seen[th.Key] = struct{}{}
		switch th.Direction {
		case "above", "below":
		default:
			return fmt.Errorf("alerts.thresholds.%s direction must be above or below", th.Key)
		}
		metric := th.Metric
		if metric == "total_assets_ratio" {
			continue
		}
		ccy, ok := strings.CutPrefix(metric, "unrealized_pnl:")
		if !ok {
			return fmt.Errorf("alerts.thresholds.%s has unknown metric %q", th.Key, metric)
		}
		if _, tracked := p.InitialCapital[ccy]; !tracked && ccy != p.ReportingCurrency {
			return fmt.Errorf("alerts.thresholds.%s references untracked currency %q", th.Key, ccy)
		}
	}
	return nil
}

func (j JobsConfig) validate() error {
	if j.DailyReportHour < 0 || j.DailyReportHour > 23 {
		return fmt.Errorf("jobs.daily_report_hour must be 0-23")
	}
	if j.WeeklyReportWeekday < 0 || j.WeeklyReportWeekday > 6 {
		return fmt.Errorf("jobs.weekly_report_weekday must be 0-6")
	}
	return nil
}

func (n NotifyConfig) validate() error {
	if n.Slack.Enabled && strings.TrimSpace(n.Slack.WebhookURL) == "" {
		return fmt.Errorf("notify.slack.webhook_url is required when slack is enabled")
	}
	if n.Telegram.Enabled {
		if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram requires bot_token and chat_id")
		}
	}
	return nil
}
