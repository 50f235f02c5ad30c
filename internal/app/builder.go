package app

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"fxledger/internal/alert"
	"fxledger/internal/config"
	"fxledger/internal/importer"
	"fxledger/internal/jobs"
	"fxledger/internal/ledger"
	"fxledger/internal/notify"
	"fxledger/internal/ratehist"
	"fxledger/internal/rates"
	httpapi "fxledger/internal/transport/http"
	"fxledger/internal/valuation"
)

// NewApp constructs the full dependency graph from config without
// starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	store, err := ledger.Open(filepath.Join(cfg.App.DataDir, "fxledger.db"))
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	history, err := ratehist.Open(filepath.Join(cfg.App.DataDir, "rates.db"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening rate history: %w", err)
	}

	provider := buildRateProvider(cfg.Rates)
	valuator := valuation.New(provider,
		cfg.Portfolio.ReportingCurrency,
		cfg.Portfolio.InitialTotalValue,
		cfg.Rates.StalenessCeiling(),
		valuation.WithSpreads(cfg.Rates.Spreads))

	notifier := buildNotifier(cfg.Notify)
	currencies := trackedCurrencies(cfg.Portfolio)

	valJob := &jobs.ValuationJob{
		Store:     store,
		Valuator:  valuator,
		Evaluator: alert.NewEvaluator(cfg.Alerts.Thresholds),
		Notifier:  notifier,
		Rates:     history,
		Initial:   cfg.Portfolio.InitialCapital,
		Reporting: cfg.Portfolio.ReportingCurrency,
	}
	linkJob := &jobs.LinkJob{
		Store:       store,
		MaxDistance: cfg.Linker.MaxDistance(),
		Window:      cfg.Linker.Window(),
	}
	indicatorJob := &jobs.IndicatorJob{
		History:    history,
		Currencies: currencies,
		Reporting:  cfg.Portfolio.ReportingCurrency,
	}
	reportJob := &jobs.ReportJob{
		Store:          store,
		Valuation:      valJob,
		Notifier:       notifier,
		ChartDir:       filepath.Join(cfg.App.DataDir, "reports"),
		InitialCapital: cfg.Portfolio.InitialTotalValue,
	}

	var imp *importer.Importer
	if cfg.Importer.TradeLogPath != "" {
		imp = importer.New(cfg.Importer.TradeLogPath, store, currencies)
	}

	serverCfg := httpapi.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Ledger:    store,
		Valuation: valJob,
		AppConfig: cfg,
	}
	if imp != nil {
		serverCfg.Importer = imp
	}
	server, err := httpapi.NewServer(serverCfg)
	if err != nil {
		history.Close()
		store.Close()
		return nil, fmt.Errorf("building http server: %w", err)
	}

	return &App{
		cfg:          cfg,
		store:        store,
		history:      history,
		server:       server,
		importer:     imp,
		valuationJob: valJob,
		linkJob:      linkJob,
		indicatorJob: indicatorJob,
		reportJob:    reportJob,
		summary:      buildSummary(cfg, currencies),
	}, nil
}

func buildRateProvider(cfg config.RatesConfig) *rates.Provider {
	api := rates.NewAPISource(cfg.APIURL, cfg.Timeout())
	google := rates.NewGoogleSource(cfg.Timeout())
	if strings.EqualFold(cfg.Provider, "google_finance") {
		return rates.NewProvider(google, api)
	}
	return rates.NewProvider(api, google)
}

func buildNotifier(cfg config.NotifyConfig) notify.TextNotifier {
	var targets notify.Multi
	if cfg.Slack.Enabled && cfg.Slack.WebhookURL != "" {
		targets = append(targets, notify.NewSlack(cfg.Slack.WebhookURL))
	}
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		targets = append(targets, notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	if len(targets) == 0 {
		return nil
	}
	return targets
}

func trackedCurrencies(cfg config.PortfolioConfig) []string {
	out := make([]string, 0, len(cfg.InitialCapital)+1)
	seen := map[string]struct{}{}
	add := func(c string) {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	add(cfg.ReportingCurrency)
	for c := range cfg.InitialCapital {
		add(c)
	}
	sort.Strings(out)
	return out
}
