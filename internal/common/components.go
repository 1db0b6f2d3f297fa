package common

const (
	ComponentRPCGateway  = "rpc-gateway"
	ComponentCacheStore  = "cache-store"
	ComponentResolver    = "resolver"
	ComponentFetcher     = "fetcher"
	ComponentLive        = "live-follower"
	ComponentStream      = "event-stream"
	ComponentDispatcher  = "dispatcher"
	ComponentOrchestrator = "orchestrator"
	ComponentMaintenance = "maintenance"
	ComponentAPI         = "api"
)

var AllComponents = map[string]struct{}{
	ComponentRPCGateway:   {},
	ComponentCacheStore:   {},
	ComponentResolver:     {},
	ComponentFetcher:      {},
	ComponentLive:         {},
	ComponentStream:       {},
	ComponentDispatcher:   {},
	ComponentOrchestrator: {},
	ComponentMaintenance:  {},
	ComponentAPI:          {},
}
