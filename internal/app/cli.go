package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	// Documentation pipeline
	flags.StringP("docs-cache-dir", "d", "", "Directory for cached documentation (default ~/.toss-docs-mcp/cache)")
	flags.Duration("docs-fetch-timeout", 0, "Timeout for a single HTTP request (default 30s)")
	flags.Int("docs-fetch-retries", 0, "Retries after a failed request, 0 or 1 (default 1)")
	flags.IntP("docs-concurrency", "c", 0, "Maximum simultaneous fetches, 1-8 (default 8)")
	flags.Float64("docs-rate-limit", 0, "Requests per second per host, 0 for unlimited")
	flags.Int("docs-max-chunk-len", 0, "Maximum chunk length in characters (default 3000)")
	flags.IntP("docs-max-results", "n", 0, "Default number of search results, up to 50 (default 10)")
	flags.Bool("docs-sync-on-start", true, "Sync all sources at startup")
	flags.String("docs-sync-schedule", "", "Cron schedule for background syncs, e.g. \"@every 6h\"")
	flags.Duration("docs-lock-timeout", 0, "How long to wait for another instance's startup sync (default 2m)")
	flags.Int("docs-search-cache-size", 0, "Number of memoised search results, 0 disables (default 256)")
	flags.Duration("docs-search-cache-ttl", 0, "Lifetime of memoised search results (default 10m)")
}
