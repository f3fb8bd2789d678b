package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
	}

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	d := s.Docs
	logger.InfoContext(ctx, "Config: docs.cache_dir", "value", d.CacheDir)
	logger.InfoContext(ctx, "Config: docs.fetch", "timeout", d.FetchTimeout, "retries", d.FetchRetries, "concurrency", d.Concurrency)
	if d.RateLimit > 0 {
		logger.InfoContext(ctx, "Config: docs.rate_limit", "value", d.RateLimit)
	}
	logger.InfoContext(ctx, "Config: docs.max_chunk_len", "value", d.MaxChunkLen)
	logger.InfoContext(ctx, "Config: docs.max_results", "value", d.MaxResults)
	logger.InfoContext(ctx, "Config: docs.sync_on_start", "value", d.SyncOnStart)
	if d.SyncSchedule != "" {
		logger.InfoContext(ctx, "Config: docs.sync_schedule", "value", d.SyncSchedule)
	}
	if d.SearchCacheSize > 0 {
		logger.InfoContext(ctx, "Config: docs.search_cache", "size", d.SearchCacheSize, "ttl", d.SearchCacheTTL)
	}
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = "****"
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", "****"),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Any("docs", DocsSettingsLogValue(s.Docs)),
	)
}

// DocsSettingsLogValue returns a slog.Value for DocsSettings
func DocsSettingsLogValue(d DocsSettings) slog.Value {
	return slog.GroupValue(
		slog.String("cache_dir", d.CacheDir),
		slog.Duration("fetch_timeout", d.FetchTimeout),
		slog.Int("fetch_retries", d.FetchRetries),
		slog.Int("concurrency", d.Concurrency),
		slog.Float64("rate_limit", d.RateLimit),
		slog.Int("max_chunk_len", d.MaxChunkLen),
		slog.Int("max_results", d.MaxResults),
		slog.Bool("sync_on_start", d.SyncOnStart),
		slog.String("sync_schedule", d.SyncSchedule),
	)
}
