// Package main is the entry point for the accession resolver server: a
// small HTTP surface in front of the batch resolution pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phl-informatics/accession-resolver/pkg/cache"
	"github.com/phl-informatics/accession-resolver/pkg/entrez"
	"github.com/phl-informatics/accession-resolver/pkg/logging"
	"github.com/phl-informatics/accession-resolver/pkg/resolver"
)

// version is set at build time via ldflags.
var version = "dev"

// Bounds for per-request tunables. Out-of-range values are rejected with
// 400 before the pipeline starts.
const (
	minTimeoutSec, maxTimeoutSec = 1, 60
	minWorkers, maxWorkers       = 1, 50
	minRetries, maxRetries       = 0, 10
	minDelaySec, maxDelaySec     = 0.0, 5.0
)

// serverConfig holds process-level configuration resolved from viper.
// Per-batch tunables arrive as query parameters instead.
type serverConfig struct {
	Listen    string
	LogLevel  string
	LogPretty bool
	BaseURL   string
	Database  string
	UserAgent string
	RedisAddr string
	CacheTTL  time.Duration
}

var rootCmd = &cobra.Command{
	Use:   "resolver-server",
	Short: "HTTP service resolving sample identifiers to GenBank accessions",
	Long: `resolver-server exposes the batch accession resolution pipeline over
HTTP. GET /fetch-accession/ accepts a comma-separated term list plus
per-batch tunables and returns a JSON object mapping each trimmed term to
its resolved accession or null. /health and /metrics round out the
surface.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(loadConfig())
	},
}

func init() {
	rootCmd.Flags().String("listen", "", "listen address (default :8080)")
	rootCmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().Bool("log-pretty", false, "human-readable console logs")
	rootCmd.Flags().String("redis-addr", "", "redis address enabling the summary cache (empty disables)")

	viper.SetDefault("listen", ":8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_pretty", false)
	viper.SetDefault("base_url", entrez.DefaultBaseURL)
	viper.SetDefault("database", "nuccore")
	viper.SetDefault("user_agent", "accession-resolver/"+version)
	viper.SetDefault("redis_addr", "")
	viper.SetDefault("cache_ttl", "15m")

	viper.SetEnvPrefix("RESOLVER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindPFlag("listen", rootCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("log_pretty", rootCmd.Flags().Lookup("log-pretty"))
	_ = viper.BindPFlag("redis_addr", rootCmd.Flags().Lookup("redis-addr"))
}

func loadConfig() serverConfig {
	return serverConfig{
		Listen:    viper.GetString("listen"),
		LogLevel:  viper.GetString("log_level"),
		LogPretty: viper.GetBool("log_pretty"),
		BaseURL:   viper.GetString("base_url"),
		Database:  viper.GetString("database"),
		UserAgent: viper.GetString("user_agent"),
		RedisAddr: viper.GetString("redis_addr"),
		CacheTTL:  viper.GetDuration("cache_ttl"),
	}
}

func run(cfg serverConfig) error {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	var cacheManager *cache.Manager
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		cacheManager = cache.NewManager(redisClient)
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("Summary cache enabled")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/fetch-accession/", fetchAccessionHandler(cfg, cacheManager))

	logger.Info().
		Str("listen", cfg.Listen).
		Str("base_url", cfg.BaseURL).
		Str("database", cfg.Database).
		Msg("Starting resolver server")

	if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// fetchAccessionHandler parses the term list and per-batch tunables, runs
// the pipeline, and serializes the result map. Malformed input is the
// only failure that surfaces to the caller; resolution failures degrade
// to null entries inside the map.
func fetchAccessionHandler(cfg serverConfig, cacheManager *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		termsParam := query.Get("terms")
		if strings.TrimSpace(termsParam) == "" {
			http.Error(w, "missing required parameter: terms", http.StatusBadRequest)
			return
		}
		terms := strings.Split(termsParam, ",")

		timeoutSec, err := intParam(query, "timeout", 15, minTimeoutSec, maxTimeoutSec)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		workers, err := intParam(query, "num_workers", 5, minWorkers, maxWorkers)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		retries, err := intParam(query, "max_retries", 5, minRetries, maxRetries)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		delaySec, err := floatParam(query, "request_delay", 0.5, minDelaySec, maxDelaySec)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		batchCfg := resolver.Config{
			APIKey:       query.Get("api_key"),
			Timeout:      time.Duration(timeoutSec) * time.Second,
			Workers:      workers,
			MaxRetries:   retries,
			RequestDelay: time.Duration(delaySec * float64(time.Second)),
		}

		client := entrez.New(entrez.Config{
			BaseURL:      cfg.BaseURL,
			APIKey:       batchCfg.APIKey,
			Database:     cfg.Database,
			RequestDelay: batchCfg.RequestDelay,
			UserAgent:    cfg.UserAgent,
			Cache:        cacheManager,
			CacheTTL:     cfg.CacheTTL,
		})

		results := resolver.Resolve(r.Context(), client, terms, batchCfg)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(results); err != nil {
			// Headers are already out; nothing left to do but log.
			logger := logging.NewLogger("server")
			logger.Error().Err(err).Msg("Failed to write response")
		}
	}
}

// intParam reads an integer query parameter with a default and inclusive
// bounds.
func intParam(query map[string][]string, name string, def, min, max int) (int, error) {
	values, ok := query[name]
	if !ok || len(values) == 0 || values[0] == "" {
		return def, nil
	}
	v, err := strconv.Atoi(values[0])
	if err != nil {
		return 0, fmt.Errorf("parameter %s must be an integer", name)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("parameter %s must be between %d and %d", name, min, max)
	}
	return v, nil
}

// floatParam reads a float query parameter with a default and inclusive
// bounds.
func floatParam(query map[string][]string, name string, def, min, max float64) (float64, error) {
	values, ok := query[name]
	if !ok || len(values) == 0 || values[0] == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(values[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s must be a number", name)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("parameter %s must be between %g and %g", name, min, max)
	}
	return v, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
