package cooldown

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cooldownBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "api_cooldown_blocks_total",
		Help: "Total number of requests refused locally due to an active cooldown",
	})

	cooldownsSetTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "api_cooldowns_set_total",
		Help: "Total number of cooldowns recorded after rate-limit responses",
	})

	cooldownClearsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "api_cooldown_clears_total",
		Help: "Total number of cooldowns cleared by subsequent successes",
	})
)
