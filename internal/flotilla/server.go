package flotilla

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-redis/redis"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/flotillaproject/flotilla/internal/common"
	"github.com/flotillaproject/flotilla/internal/common/flotillaerrors"
	"github.com/flotillaproject/flotilla/internal/common/health"
	"github.com/flotillaproject/flotilla/internal/flotilla/allocator"
	"github.com/flotillaproject/flotilla/internal/flotilla/configuration"
	"github.com/flotillaproject/flotilla/internal/flotilla/maintenance"
	"github.com/flotillaproject/flotilla/internal/flotilla/metrics"
	"github.com/flotillaproject/flotilla/internal/flotilla/notify"
	"github.com/flotillaproject/flotilla/internal/flotilla/offers"
	"github.com/flotillaproject/flotilla/internal/flotilla/repository"
	"github.com/flotillaproject/flotilla/internal/flotilla/state"
)

// ControlPlane bundles the mutating entry points of the control plane; the
// transport layer dispatches decoded requests into it and renders the typed
// results and errors it returns.
type ControlPlane struct {
	Store       *state.Store
	Registry    *repository.RedisRegistry
	Reconciler  *offers.Reconciler
	Maintenance *maintenance.Coordinator
	Allocator   *allocator.LocalAllocator
}

// New builds the control plane on top of the given redis-backed registry
// connection and recovers the durably committed maintenance state into the
// in-memory store.
func New(config *configuration.FlotillaConfig, db redis.UniversalClient) (*ControlPlane, error) {
	registry := repository.NewRedisRegistry(db)

	store, err := state.NewStore(config.History.CompletedFrameworks, config.History.CompletedTasksPerFramework)
	if err != nil {
		return nil, err
	}
	if err := recoverMaintenanceState(store, registry); err != nil {
		return nil, err
	}

	alloc := allocator.NewLocalAllocator()
	notifier := notify.NewLogNotifier()

	filters := allocator.DefaultFilters()
	if config.Offers.RefuseDuration > 0 {
		filters.RefuseDuration = config.Offers.RefuseDuration
	}
	statusCacheTTL := config.Maintenance.StatusCacheTTL
	if statusCacheTTL <= 0 {
		statusCacheTTL = 5 * time.Second
	}

	return &ControlPlane{
		Store:       store,
		Registry:    registry,
		Reconciler:  offers.NewReconciler(store, alloc, registry, notifier, filters),
		Maintenance: maintenance.NewCoordinator(store, registry, alloc, notifier, statusCacheTTL),
		Allocator:   alloc,
	}, nil
}

// Serve builds the control plane and runs it until the context is cancelled.
func Serve(ctx context.Context, config *configuration.FlotillaConfig) error {
	log.Info("Flotilla control plane starting")
	defer log.Info("Flotilla control plane shutting down")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// The health endpoint comes up first and reports unavailable until startup
	// has completed.
	startupChecker := health.NewStartupCompleteChecker()
	healthChecks := health.NewMultiChecker(startupChecker)
	shutdownMetrics := common.ServeMetrics(config.MetricsPort, healthChecks)
	g.Go(func() error {
		<-ctx.Done()
		shutdownMetrics()
		return nil
	})

	db := createRedisClient(&config.Redis)
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("failed to close redis client")
		}
	}()

	// Do not report ready until the durable registry is reachable; callers
	// should retry against another instance in the meantime.
	err := retry.Do(
		func() error { return db.Ping().Err() },
		retry.Attempts(5),
		retry.Delay(time.Second),
	)
	if err != nil {
		return &flotillaerrors.ErrUnavailable{Message: err.Error()}
	}

	controlPlane, err := New(config, db)
	if err != nil {
		return err
	}
	metrics.ExposeClusterMetrics(controlPlane.Store)

	healthChecks.Add(controlPlane.Registry)
	startupChecker.MarkComplete()
	log.Info("Flotilla control plane ready")
	return g.Wait()
}

func createRedisClient(config *redis.UniversalOptions) redis.UniversalClient {
	return redis.NewUniversalClient(config)
}

// recoverMaintenanceState replays the committed schedule and machine modes so a
// restarted control plane resumes with the same maintenance view. Inverse-offer
// responses are not durable and start empty after a restart.
func recoverMaintenanceState(store *state.Store, registry repository.Registry) error {
	schedule, err := registry.GetSchedule()
	if err != nil {
		return err
	}
	if schedule != nil {
		store.UpdateSchedule(schedule)
	}

	modes, err := registry.GetMachineModes()
	if err != nil {
		return err
	}
	var down []string
	for id, mode := range modes {
		if mode == state.MachineDown {
			down = append(down, id)
		}
	}
	if len(down) > 0 {
		store.SetMachinesDown(down)
	}
	return nil
}
