package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn or error")
	flags.StringP("catalog-db", "d", "", "Path of the catalog database")
	flags.StringP("auth-type", "a", "", "SSE authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	RegisterIndexFlags(flags)

	flags.Int("search-max-results", 0, "Maximum page size of a search")
	flags.Int("search-max-attempts", 0, "Search/load round trips allowed to fill a page")
	flags.Duration("search-call-timeout", 0, "Timeout of a single search or load call")
	flags.String("search-filters-file", "", "YAML file with browse filters per store")
	flags.Duration("search-filter-ttl", 0, "How long browse filters are cached")
}

// RegisterIndexFlags registers the flags that shape index builds
func RegisterIndexFlags(flags *pflag.FlagSet) {
	flags.Bool("index-enabled", true, "Build and serve the search index")
	flags.String("index-base-dir", "", "Directory holding indexes, manifest and build lock (empty string keeps indexes in memory)")
	flags.String("index-scope", "", "Index scope (one index per scope)")
	flags.StringSlice("index-document-types", nil, "Document types to index (category, catalogitem)")
	flags.Duration("index-sync-interval", 0, "Interval between incremental builds")
	flags.Duration("index-lock-timeout", 0, "How long a follower waits for the build leader")
	flags.Int("index-batch-size", 0, "Maximum entities per partition")
	flags.Int("index-projection-workers", 0, "Concurrent projections per partition")
	flags.Int("index-publish-workers", 0, "Concurrently processed partitions")
	flags.Bool("index-legacy-status", false, "Mark every persisted entity hidden, as older builds did")
}
