package config

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9980"
	}
	if c.App.DataDir == "" {
		c.App.DataDir = "data"
	}
	if c.Portfolio.ReportingCurrency == "" {
		c.Portfolio.ReportingCurrency = "JPY"
	}
	if c.Portfolio.InitialTotalValue == 0 {
		c.Portfolio.InitialTotalValue = c.Portfolio.InitialCapital[c.Portfolio.ReportingCurrency]
	}
	if c.Rates.Provider == "" {
		c.Rates.Provider = "quote_api"
	}
	if c.Rates.TimeoutSeconds == 0 {
		c.Rates.TimeoutSeconds = 10
	}
	if c.Rates.StalenessCeilingSeconds == 0 {
		c.Rates.StalenessCeilingSeconds = 1800
	}
	if c.Linker.MaxDistanceSeconds == 0 {
		c.Linker.MaxDistanceSeconds = 7200
	}
	if c.Linker.WindowHours == 0 {
		c.Linker.WindowHours = 4
	}
	if c.Jobs.ValuationInterval == "" {
		c.Jobs.ValuationInterval = "15m"
	}
	if c.Jobs.LinkInterval == "" {
		c.Jobs.LinkInterval = "1h"
	}
	if c.Jobs.IndicatorInterval == "" {
		c.Jobs.IndicatorInterval = "1h"
	}
	if c.Jobs.DailyReportHour == 0 {
		c.Jobs.DailyReportHour = 7
	}
}
