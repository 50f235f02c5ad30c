package app

import (
	"fmt"
	"strings"

	"fxledger/internal/config"
	"fxledger/internal/logger"
)

// StartupSummary is printed once at boot so a glance at the log shows
// what the process is actually tracking.
type StartupSummary struct {
	Env        string
	Reporting  string
	Currencies []string
	Thresholds []string
	Provider   string
	HTTPAddr   string
	TradeLog   string
	Notifiers  []string
}

func buildSummary(cfg *config.Config, currencies []string) *StartupSummary {
	s := &StartupSummary{
		Env:        cfg.App.Env,
		Reporting:  cfg.Portfolio.ReportingCurrency,
		Currencies: currencies,
		Provider:   cfg.Rates.Provider,
		HTTPAddr:   cfg.App.HTTPAddr,
		TradeLog:   cfg.Importer.TradeLogPath,
	}
	for _, th := range cfg.Alerts.Thresholds {
		s.Thresholds = append(s.Thresholds,
			fmt.Sprintf("%s: %s %s %g", th.Key, th.Metric, th.Direction, th.Value))
	}
	if cfg.Notify.Slack.Enabled {
		s.Notifiers = append(s.Notifiers, "slack")
	}
	if cfg.Notify.Telegram.Enabled {
		s.Notifiers = append(s.Notifiers, "telegram")
	}
	return s
}

func (s *StartupSummary) Print() {
	line := strings.Repeat("=", 60)
	var b strings.Builder
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "fxledger starting (env=%s)\n", s.Env)
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "reporting currency: %s\n", s.Reporting)
	fmt.Fprintf(&b, "tracked currencies: %s\n", formatList(s.Currencies))
	fmt.Fprintf(&b, "rate provider: %s\n", s.Provider)
	fmt.Fprintf(&b, "trade log: %s\n", orDash(s.TradeLog))
	fmt.Fprintf(&b, "notifiers: %s\n", formatList(s.Notifiers))
	if len(s.Thresholds) == 0 {
		fmt.Fprintln(&b, "thresholds: (none)")
	} else {
		fmt.Fprintln(&b, "thresholds:")
		for _, th := range s.Thresholds {
			fmt.Fprintf(&b, "  - %s\n", th)
		}
	}
	fmt.Fprintf(&b, "http: %s\n", s.HTTPAddr)
	fmt.Fprintln(&b, line)
	logger.InfoBlock(b.String())
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
