package config

type AnalyticsConfig struct {
	Collection        string `yaml:"collection"`
	DefaultWindowDays int    `yaml:"default_window_days"`
	SummaryMaxAge     int    `yaml:"summary_max_age"`
	TopN              int    `yaml:"top_n"`
	RetentionDays     int    `yaml:"retention_days"`
}

func loadAnalyticsConfig() *AnalyticsConfig {
	return &AnalyticsConfig{
		Collection:        getEnv("ANALYTICS_COLLECTION", "analytics_events"),
		DefaultWindowDays: getEnvAsInt("ANALYTICS_DEFAULT_WINDOW_DAYS", 30),
		SummaryMaxAge:     getEnvAsInt("ANALYTICS_SUMMARY_MAX_AGE", 60),
		TopN:              getEnvAsInt("ANALYTICS_TOP_N", 10),
		RetentionDays:     getEnvAsInt("ANALYTICS_RETENTION_DAYS", 365),
	}
}
