package configuration

import (
	"time"

	"github.com/go-redis/redis"
)

type FlotillaConfig struct {
	MetricsPort uint16

	Redis redis.UniversalOptions

	History     HistoryConfig
	Maintenance MaintenanceConfig
	Offers      OffersConfig
}

// HistoryConfig bounds the completed-entity histories kept in memory; the
// oldest entry is evicted on overflow.
type HistoryConfig struct {
	CompletedFrameworks        int
	CompletedTasksPerFramework int
}

type MaintenanceConfig struct {
	// StatusCacheTTL bounds how long inverse-offer responses fetched from the
	// allocator are served from cache by maintenance status queries.
	StatusCacheTTL time.Duration
}

type OffersConfig struct {
	// RefuseDuration is the grace period attached to resources recovered by
	// offer rescission before the allocator may re-offer them.
	RefuseDuration time.Duration
}
