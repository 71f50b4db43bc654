// Command floor-agent runs the tablet-local data agent: it proxies
// dashboard requests to the MES backend through the resilient data
// layer and exposes health and metrics endpoints.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/fabwerk/mes-edge-client/internal/config"
	"github.com/fabwerk/mes-edge-client/pkg/client"
	"github.com/fabwerk/mes-edge-client/pkg/connectivity"
	"github.com/fabwerk/mes-edge-client/pkg/edgecache"
	"github.com/fabwerk/mes-edge-client/pkg/logging"
	"github.com/fabwerk/mes-edge-client/pkg/mutate"
	"github.com/fabwerk/mes-edge-client/pkg/querycache"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Setup(logging.DefaultConfig())
		fallback.Fatal().Err(err).Msg("Configuration error")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	}).With().Str("component", "floor-agent").Logger()

	store, err := buildStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize edge cache store")
	}

	transport := edgecache.NewTransport(store, edgecache.DefaultRules(), nil, logger)
	gateway, err := client.New(client.Config{
		BaseURL:    cfg.BackendURL,
		HTTPClient: &http.Client{Transport: transport},
		UserAgent:  "mes-floor-agent/1.0",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create gateway")
	}

	monitor := connectivity.NewMonitor(3, logger)
	queries := querycache.New(querycache.Options{
		Logger:   logger,
		Observer: monitor,
	})
	defer queries.Close()
	monitor.OnReconnect(queries.NotifyReconnect)

	mutations := mutate.New(queries, nil, logger)

	router := chi.NewRouter()
	router.Get("/health", healthHandler)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/api/*", proxyHandler(queries, gateway))
	router.Post("/api/*", mutationHandler(mutations, gateway))
	router.Post("/focus", func(w http.ResponseWriter, _ *http.Request) {
		queries.NotifyFocus()
		w.WriteHeader(http.StatusNoContent)
	})

	logger.Info().
		Str("listen", cfg.ListenAddr).
		Str("backend", cfg.BackendURL).
		Msg("Floor agent starting")

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func buildStore(cfg *config.Config) (edgecache.Store, error) {
	if cfg.RedisAddr != "" {
		return edgecache.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})), nil
	}
	return edgecache.NewFileStore(cfg.CacheDir)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// proxyHandler serves dashboard reads through the query cache. The
// query key is the request path plus raw query, the same identity the
// dashboard uses, so repeated reads coalesce.
func proxyHandler(queries *querycache.Coordinator, gateway *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if r.URL.RawQuery != "" {
			endpoint += "?" + r.URL.RawQuery
		}
		key := strings.TrimPrefix(endpoint, "/")

		res, err := queries.Read(r.Context(), key, func(ctx context.Context) (json.RawMessage, error) {
			return gateway.Get(ctx, endpoint)
		})
		if err != nil {
			status := http.StatusBadGateway
			if s := client.StatusOf(err); s != 0 {
				status = s
			}
			http.Error(w, err.Error(), status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Query-Status", string(res.Status))
		w.WriteHeader(http.StatusOK)
		w.Write(res.Data)
	}
}

// mutationHandler forwards dashboard writes through the mutation
// executor. The same-path read query is invalidated so the next read
// revalidates; finer-grained mappings live in pkg/mes.
func mutationHandler(mutations *mutate.Executor, gateway *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		key := strings.TrimPrefix(endpoint, "/")

		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err.Error() != "EOF" {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		data, err := mutations.Do(r.Context(), mutate.Mutation{
			Name:        "proxy." + key,
			Invalidates: []string{key},
			Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
				header := http.Header{}
				header.Set("Idempotency-Key", idempotencyKey)
				var payload any
				if len(body) > 0 {
					payload = body
				}
				return gateway.Post(ctx, endpoint, payload, header)
			},
		})
		if err != nil {
			status := http.StatusBadGateway
			if s := client.StatusOf(err); s != 0 {
				status = s
			}
			http.Error(w, err.Error(), status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if len(data) > 0 {
			w.Write(data)
		}
	}
}
