// Command api-gateway exposes the coordinated API client as a small HTTP
// proxy: requests under /api/ are forwarded through the client so they
// benefit from response caching, request coalescing, and rate-limit
// cooldowns shared across all gateway consumers.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Gimer0x/code-api-client/pkg/api"
	"github.com/Gimer0x/code-api-client/pkg/cooldown"
	"github.com/Gimer0x/code-api-client/pkg/logging"
)

func main() {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") != "",
		Output: os.Stderr,
	})

	backendURL := getEnv("BACKEND_URL", "http://localhost:3000")
	redisURL := getEnv("REDIS_URL", "")
	port := getEnv("PORT", "8080")

	cfg := api.DefaultConfig(backendURL)

	var redisClient *redis.Client
	if redisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: redisURL,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis_url", redisURL).Msg("Connected to Redis")

		cfg.CooldownKV = cooldown.NewRedisKV(redisClient)
	}

	client, err := api.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API client")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/", proxyHandler(client, logger))

	addr := ":" + port
	logger.Info().Str("addr", addr).Str("backend", backendURL).Msg("Starting API gateway")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports readiness. Without Redis the gateway runs on
// in-memory cooldown state and is always ready.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "Redis unavailable: %v", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// proxyHandler forwards /api/<path> through the coordinated client.
func proxyHandler(client *api.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path[len("/api"):]

		var body interface{}
		if r.Body != nil && r.ContentLength != 0 {
			var payload json.RawMessage
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(w, "invalid JSON body", http.StatusBadRequest)
				return
			}
			body = payload
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		data, err := client.Do(ctx, r.Method, endpoint, r.URL.Query(), body)
		if err != nil {
			writeClientError(w, logger, endpoint, err)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// writeClientError maps the client's error taxonomy onto proxy responses.
func writeClientError(w http.ResponseWriter, logger zerolog.Logger, endpoint string, err error) {
	var rateLimited *api.RateLimitedError
	var authErr *api.AuthorizationError
	var respErr *api.ResponseError

	switch {
	case errors.As(err, &rateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(int(rateLimited.RetryAfter.Seconds()+0.5)))
		writeJSONError(w, http.StatusTooManyRequests, rateLimited.Error())
	case errors.As(err, &authErr):
		writeJSONError(w, http.StatusUnauthorized, authErr.Error())
	case errors.As(err, &respErr):
		writeJSONError(w, respErr.StatusCode, respErr.Message)
	default:
		logger.Error().Err(err).Str("endpoint", endpoint).Msg("Upstream request failed")
		writeJSONError(w, http.StatusBadGateway, "upstream request failed")
	}
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
