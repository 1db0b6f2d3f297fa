// Package orchestrator wires the RPC Gateway, Cache Store, Source Resolver,
// Historical Fetcher, Live Follower, Event Stream and Dispatcher into one
// running pipeline per configuration, as a reusable type an embedding
// program constructs once and runs.
package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/riftline/evmsync/internal/cachestore"
	cachemigrations "github.com/riftline/evmsync/internal/cachestore/migrations"
	"github.com/riftline/evmsync/internal/common"
	"github.com/riftline/evmsync/internal/db"
	"github.com/riftline/evmsync/internal/dispatcher"
	dispatchermigrations "github.com/riftline/evmsync/internal/dispatcher/migrations"
	"github.com/riftline/evmsync/internal/errkind"
	"github.com/riftline/evmsync/internal/fetcher"
	"github.com/riftline/evmsync/internal/live"
	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/internal/metrics"
	"github.com/riftline/evmsync/internal/resolver"
	"github.com/riftline/evmsync/internal/rpcgateway"
	"github.com/riftline/evmsync/internal/stream"
	pkgconfig "github.com/riftline/evmsync/pkg/config"
	"github.com/riftline/evmsync/pkg/events"
	"github.com/riftline/evmsync/pkg/source"
	"github.com/riftline/evmsync/pkg/store"
	"golang.org/x/sync/errgroup"
)

// perNetwork bundles the components scoped to one configured network.
type perNetwork struct {
	network  source.Network
	rpc      *rpcgateway.Gateway
	fetcher  *fetcher.Fetcher
	follower *live.Follower
}

// Orchestrator owns every component for one evmsync process: one Cache
// Store and record store shared across all networks, one RPC Gateway /
// Historical Fetcher / Live Follower / Source Resolver per network, and a
// single Dispatcher draining the merged Event Stream.
type Orchestrator struct {
	cfg *pkgconfig.Config
	log *logger.Logger

	sqlDB       *sql.DB
	cache       *cachestore.Store
	recordStore *store.SQLStore
	resolver    *resolver.Resolver
	dispatcher  *dispatcher.Dispatcher
	maint       db.Maintenance

	networks map[string]*perNetwork
	sources  map[string]source.Source

	errMu       sync.Mutex
	lastErrKind errkind.Kind
	haveErrKind bool
}

// New constructs every component from cfg but starts nothing. handlers
// binds each configured source name to the business logic that consumes
// its decoded events; a source with no entry gets a handler that only
// advances its checkpoint (see defaultHandler).
func New(cfg *pkgconfig.Config, handlers map[string]dispatcher.HandlerSpec, log *logger.Logger) (*Orchestrator, error) {
	networks := buildNetworks(cfg)
	sources, err := buildSources(cfg)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		if _, ok := networks[src.Network]; !ok {
			return nil, fmt.Errorf("source %q references unknown network %q", src.Name, src.Network)
		}
	}

	if err := dispatchermigrations.RunMigrations(cfg.Database.Filename); err != nil {
		return nil, fmt.Errorf("orchestrator: checkpoint migrations: %w", err)
	}
	if err := cachemigrations.RunMigrations(cfg.Database.Filename); err != nil {
		return nil, fmt.Errorf("orchestrator: cache migrations: %w", err)
	}

	sqlDB, err := db.NewSQLiteDBFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: opening database: %w", err)
	}

	cache := cachestore.New(sqlDB, log.WithComponent(common.ComponentCacheStore))
	recordStore := store.New(sqlDB, log)
	maint := db.NewMaintenanceCoordinator(cfg.Database.Filename, sqlDB, cfg.Maintenance, log.WithComponent(common.ComponentMaintenance))

	o := &Orchestrator{
		cfg:         cfg,
		log:         log.WithComponent(common.ComponentOrchestrator),
		sqlDB:       sqlDB,
		cache:       cache,
		recordStore: recordStore,
		maint:       maint,
		networks:    make(map[string]*perNetwork, len(networks)),
		sources:     sources,
	}

	o.resolver = resolver.New(cache, o.ensureSynced, log.WithComponent(common.ComponentResolver))

	ctx := context.Background()
	for name, net := range networks {
		ncfg := cfg.Networks[name]
		gw, err := rpcgateway.Dial(ctx, name, ncfg, cfg.Retry)
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("orchestrator: dialing network %q: %w", name, err)
		}
		o.networks[name] = &perNetwork{
			network:  net,
			rpc:      gw,
			fetcher:  fetcher.New(net, gw, cache, log.WithComponent(common.ComponentFetcher)),
			follower: live.New(net, gw, log.WithComponent(common.ComponentLive)),
		}
	}
	for _, pn := range o.networks {
		pn.fetcher.SetResolver(o.resolver)
	}

	handlerSpecs := make(map[string]dispatcher.HandlerSpec, len(sources))
	for name := range sources {
		spec, hasCallerHandler := handlers[name]
		if !hasCallerHandler {
			spec = dispatcher.HandlerSpec{Handler: defaultHandler(o.log)}
		}
		if spec.MaxAttempts == 0 {
			spec.MaxAttempts = cfg.Options.HandlerRetryAttempts
		}
		handlerSpecs[name] = spec
	}

	o.dispatcher = dispatcher.New(sqlDB, recordStore, sources, handlerSpecs, log)

	return o, nil
}

// defaultHandler is used for a configured source with no caller-supplied
// handler: it observes the event (for demos and the CLI's default run)
// without touching the record store.
func defaultHandler(log *logger.Logger) dispatcher.Handler {
	return func(_ context.Context, _ *sql.Tx, e events.Event) error {
		log.Debugw("event dispatched with no registered handler",
			"source", e.SourceName, "event", e.EventName, "block", e.Block.Number)
		return nil
	}
}

// RecordStore returns the shared user record store, so the embedding
// program can register its own tables for reorg rollback before Run.
func (o *Orchestrator) RecordStore() *store.SQLStore {
	return o.recordStore
}

// ensureSynced satisfies resolver.EnsureSyncedFunc by backfilling
// parentSource on its own network's fetcher.
func (o *Orchestrator) ensureSynced(ctx context.Context, parentSource source.Source) error {
	pn, ok := o.networks[parentSource.Network]
	if !ok {
		return fmt.Errorf("orchestrator: unknown network %q for factory parent", parentSource.Network)
	}
	return pn.fetcher.SyncSource(ctx, parentSource)
}

// Run starts maintenance, every network's historical sync and live
// follower, the Event Stream merge, and the Dispatcher, blocking until ctx
// is canceled or a component fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.maint.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator: starting maintenance: %w", err)
	}
	defer func() {
		if err := o.maint.Stop(); err != nil {
			o.log.Warnf("maintenance stop: %v", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	for name, src := range o.sources {
		pn := o.networks[src.Network]
		g.Go(func() error {
			if err := pn.fetcher.SyncSource(gctx, src); err != nil {
				return fmt.Errorf("initial sync of %q: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	for _, pn := range o.networks {
		pn := pn
		g.Go(func() error {
			return pn.follower.Run(gctx, func(tip live.TipEvent) {
				o.onTip(gctx, pn, tip)
			})
		})
	}

	feeds := make([]stream.Feed, 0, len(o.sources))
	for name, src := range o.sources {
		pn := o.networks[src.Network]
		start, err := o.checkpointFor(gctx, src)
		if err != nil {
			return fmt.Errorf("loading checkpoint for %q: %w", name, err)
		}
		feeds = append(feeds, stream.NewCacheFeed(pn.network, src, o.resolver, o.cache, start, o.log))
	}
	merger := stream.New(feeds, o.log)
	out, waitMerge := merger.Run(gctx)

	g.Go(func() error {
		return o.dispatcher.Run(gctx, out)
	})
	g.Go(waitMerge)

	g.Go(func() error {
		return o.healthLoop(gctx)
	})

	return g.Wait()
}

// onTip reacts to a live-follower poll: a reorg triggers a cache + record
// store + checkpoint rollback to the common ancestor before resyncing; the
// ordinary case of the tip simply advancing still has to pull the newly
// produced blocks into the cache, since the Event Stream's CacheFeed only
// ever reads what the fetcher has already written there. Every poll
// reports the network's component health.
func (o *Orchestrator) onTip(ctx context.Context, pn *perNetwork, tip live.TipEvent) {
	metrics.ComponentHealthSet(common.ComponentLive, true)

	if tip.Reorg != nil {
		o.log.Warnw("rolling back for reorg",
			"network", pn.network.Name, "common_ancestor", tip.Reorg.CommonAncestor)

		if err := o.cache.DeleteFromBlock(ctx, pn.network.ChainID, tip.Reorg.CommonAncestor+1); err != nil {
			o.log.Errorf("reorg: cache rollback: %v", err)
			metrics.ErrorsInc(common.ComponentOrchestrator, "reorg")
			o.recordError(err)
			return
		}
		if err := o.dispatcher.Rollback(ctx, pn.network.ChainID, tip.Reorg.CommonAncestor+1); err != nil {
			o.log.Errorf("reorg: dispatcher rollback: %v", err)
			metrics.ErrorsInc(common.ComponentOrchestrator, "reorg")
			o.recordError(err)
			return
		}
	}

	o.syncNetworkSources(ctx, pn, tip.Reorg != nil)
}

// syncNetworkSources brings every source on pn up to the Historical
// Fetcher's current finalized tip. SyncSource is idempotent and only fetches
// whatever cachestore reports as missing, so calling it on every tip
// advance (not just after a reorg) costs nothing beyond the gap query when
// there's nothing new to fetch.
func (o *Orchestrator) syncNetworkSources(ctx context.Context, pn *perNetwork, afterReorg bool) {
	for name, src := range o.sources {
		if src.Network != pn.network.Name {
			continue
		}
		if err := pn.fetcher.SyncSource(ctx, src); err != nil {
			if afterReorg {
				o.log.Errorf("reorg: resyncing %q: %v", name, err)
			} else {
				o.log.Errorf("syncing %q to new tip: %v", name, err)
				metrics.ErrorsInc(common.ComponentOrchestrator, "sync")
			}
			o.recordError(err)
		}
	}
}

// recordError classifies err via errkind.Kind and remembers it as the most
// recently observed failure, surfaced through LastErrorKind for the health
// endpoint. Errors this pipeline never tags with a Kind (a bare wrapped
// error from somewhere outside the taxonomy) are dropped rather than
// guessed at.
func (o *Orchestrator) recordError(err error) {
	var kindErr *errkind.Error
	if !errors.As(err, &kindErr) {
		return
	}
	o.errMu.Lock()
	defer o.errMu.Unlock()
	o.lastErrKind = kindErr.Kind
	o.haveErrKind = true
}

// LastErrorKind returns the most recently recorded error's Kind, and
// whether any error has been recorded yet.
func (o *Orchestrator) LastErrorKind() (errkind.Kind, bool) {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	return o.lastErrKind, o.haveErrKind
}

// checkpointFor loads the Dispatcher's persisted checkpoint for src, so a
// restarted CacheFeed resumes exactly where the Dispatcher left off.
func (o *Orchestrator) checkpointFor(ctx context.Context, src source.Source) (events.Checkpoint, error) {
	return o.dispatcher.Checkpoint(ctx, o.networks[src.Network].network.ChainID, src.Name)
}

// healthLoop periodically compares each network's chain tip against the
// most recently dispatched block, reporting the network unhealthy once the
// lag exceeds Options.MaxHealthcheckLag.
func (o *Orchestrator) healthLoop(ctx context.Context) error {
	interval := o.cfg.Options.MaxHealthcheckDuration.Duration
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.checkHealth(ctx)
		}
	}
}

func (o *Orchestrator) checkHealth(ctx context.Context) {
	for name, pn := range o.networks {
		tip, ok := pn.follower.FinalizedTip()
		if !ok {
			continue
		}
		healthy := true
		for srcName, src := range o.sources {
			if src.Network != name {
				continue
			}
			cp, err := o.dispatcher.Checkpoint(ctx, pn.network.ChainID, srcName)
			if err != nil {
				o.log.Warnf("health check: loading checkpoint for %q: %v", srcName, err)
				continue
			}
			if tip > cp.LastCompletedBlockNum && tip-cp.LastCompletedBlockNum > o.cfg.Options.MaxHealthcheckLag {
				healthy = false
			}
		}
		metrics.ComponentHealthSet(common.ComponentDispatcher, healthy)
	}
}

// SourceStatus is one configured source's sync position, for the API's
// status endpoint.
type SourceStatus struct {
	Name               string
	Network            string
	LastCompletedBlock uint64
	Healthy            bool
}

// NetworkStatus is one configured network's chain tip, for the API's
// status endpoint.
type NetworkStatus struct {
	Name         string
	ChainID      uint64
	FinalizedTip uint64
	TipKnown     bool
}

// Status is the Orchestrator's point-in-time snapshot, grounded on the
// same comparison healthLoop already performs, exposed for pkg/api's
// health/status endpoints instead of only feeding component metrics.
type Status struct {
	Networks []NetworkStatus
	Sources  []SourceStatus
}

// Status reports every network's chain tip and every source's dispatch
// position, the same data checkHealth already computes, for a caller that
// wants it synchronously rather than through the component-health gauges.
func (o *Orchestrator) Status(ctx context.Context) Status {
	var st Status

	for name, pn := range o.networks {
		tip, ok := pn.follower.FinalizedTip()
		st.Networks = append(st.Networks, NetworkStatus{
			Name:         name,
			ChainID:      pn.network.ChainID,
			FinalizedTip: tip,
			TipKnown:     ok,
		})
	}

	for name, src := range o.sources {
		pn := o.networks[src.Network]
		cp, err := o.dispatcher.Checkpoint(ctx, pn.network.ChainID, name)
		healthy := err == nil
		tip, tipKnown := pn.follower.FinalizedTip()
		if healthy && tipKnown && tip > cp.LastCompletedBlockNum && tip-cp.LastCompletedBlockNum > o.cfg.Options.MaxHealthcheckLag {
			healthy = false
		}
		st.Sources = append(st.Sources, SourceStatus{
			Name:               name,
			Network:            src.Network,
			LastCompletedBlock: cp.LastCompletedBlockNum,
			Healthy:            healthy,
		})
	}

	return st
}

// Close releases every network's RPC connection and the shared database.
func (o *Orchestrator) Close() {
	var wg sync.WaitGroup
	for _, pn := range o.networks {
		pn := pn
		wg.Add(1)
		go func() {
			defer wg.Done()
			pn.rpc.Close()
		}()
	}
	wg.Wait()
	if err := o.sqlDB.Close(); err != nil {
		o.log.Warnf("closing database: %v", err)
	}
}
