// Package config defines the configuration surface for an evmsync pipeline:
// networks, event sources, the cache/record database, and the ambient
// operational knobs (retry, maintenance, metrics, logging).
package config

import (
	"fmt"
	"strings"

	"github.com/riftline/evmsync/internal/common"
)

// Config is the complete configuration for one evmsync process.
type Config struct {
	Networks    map[string]NetworkConfig `yaml:"networks" json:"networks" toml:"networks"`
	Sources     map[string]SourceConfig  `yaml:"sources" json:"sources" toml:"sources"`
	Database    DatabaseConfig           `yaml:"database" json:"database" toml:"database"`
	Options     OptionsConfig            `yaml:"options" json:"options" toml:"options"`
	Logging     LoggingConfig            `yaml:"logging" json:"logging" toml:"logging"`
	Retry       *RetryConfig             `yaml:"retry" json:"retry" toml:"retry"`
	Maintenance *MaintenanceConfig       `yaml:"maintenance" json:"maintenance" toml:"maintenance"`
	Metrics     *MetricsConfig           `yaml:"metrics" json:"metrics" toml:"metrics"`
	API         *APIConfig               `yaml:"api" json:"api" toml:"api"`
}

// NetworkConfig describes one chain the pipeline follows.
type NetworkConfig struct {
	ChainID uint64 `yaml:"chain_id" json:"chain_id" toml:"chain_id"`

	// Transport is the RPC endpoint: http(s):// or ws(s)://. FallbackTransports
	// are dialed in order, each only when dialing the previous one fails.
	// Once an endpoint is dialed, calls never switch to another one: a
	// timeout or refused connection during a call is retried on the same
	// endpoint, and an http(s) endpoint is not contacted at dial time at all.
	Transport          string   `yaml:"transport" json:"transport" toml:"transport"`
	FallbackTransports []string `yaml:"fallback_transports" json:"fallback_transports" toml:"fallback_transports"`

	PollingInterval              common.Duration `yaml:"polling_interval" json:"polling_interval" toml:"polling_interval"`
	MaxBlockRange                uint64          `yaml:"max_block_range" json:"max_block_range" toml:"max_block_range"`
	MaxHistoricalTaskConcurrency int             `yaml:"max_historical_task_concurrency" json:"max_historical_task_concurrency" toml:"max_historical_task_concurrency"`
	FinalityBlockCount           uint64          `yaml:"finality_block_count" json:"finality_block_count" toml:"finality_block_count"`
}

// ApplyDefaults fills in the performance defaults called out in the design
// notes: a conservative max block range and a 2s poll for live tailing.
func (n *NetworkConfig) ApplyDefaults() {
	if n.MaxBlockRange == 0 {
		n.MaxBlockRange = defaultMaxBlockRangeForChain(n.ChainID)
	}
	if n.MaxHistoricalTaskConcurrency == 0 {
		n.MaxHistoricalTaskConcurrency = 8
	}
	if n.FinalityBlockCount == 0 {
		n.FinalityBlockCount = 64
	}
	if n.PollingInterval.Duration == 0 {
		n.PollingInterval = common.NewDuration(defaultPollingInterval)
	}
}

// defaultMaxBlockRangeForChain is a heuristic table of provider-friendly
// block-range caps; purely a performance default, never a correctness
// requirement (oversized ranges fail and get halved by the fetcher).
func defaultMaxBlockRangeForChain(chainID uint64) uint64 {
	switch chainID {
	case 1: // Ethereum mainnet: most providers throttle eth_getLogs hard
		return 2000
	case 10, 8453, 42161: // OP Stack / Arbitrum: generally more permissive
		return 10000
	default:
		return 5000
	}
}

// FactoryConfig describes a dynamic child-address source.
type FactoryConfig struct {
	Address   string `yaml:"address" json:"address" toml:"address"`
	Event     string `yaml:"event" json:"event" toml:"event"`
	Parameter string `yaml:"parameter" json:"parameter" toml:"parameter"`
}

// SourceConfig is one configured event source bound to a network.
type SourceConfig struct {
	Network string `yaml:"network" json:"network" toml:"network"`

	// ABI is the JSON ABI text (or a single event signature set) used to
	// decode logs for this source.
	ABI string `yaml:"abi" json:"abi" toml:"abi"`

	// Address holds one or more static addresses. Mutually exclusive with
	// Factory.
	Address []string       `yaml:"address" json:"address" toml:"address"`
	Factory *FactoryConfig `yaml:"factory" json:"factory" toml:"factory"`

	Filter map[string]any `yaml:"filter" json:"filter" toml:"filter"`

	StartBlock    uint64  `yaml:"start_block" json:"start_block" toml:"start_block"`
	EndBlock      *uint64 `yaml:"end_block" json:"end_block" toml:"end_block"`
	MaxBlockRange *uint64 `yaml:"max_block_range" json:"max_block_range" toml:"max_block_range"`
}

// IsFactory reports whether this source resolves addresses dynamically.
func (s SourceConfig) IsFactory() bool {
	return s.Factory != nil
}

// DatabaseConfig configures the single relational store backing both the
// Cache Store and the reference record store.
type DatabaseConfig struct {
	Kind     string `yaml:"kind" json:"kind" toml:"kind"` // "sqlite" (postgres is a config-validated placeholder, not implemented)
	Filename string `yaml:"filename" json:"filename" toml:"filename"`

	JournalMode        string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`
	Synchronous        string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`
	BusyTimeout        int    `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`
	CacheSize          int    `yaml:"cache_size" json:"cache_size" toml:"cache_size"`
	MaxOpenConnections int    `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`
	EnableForeignKeys  bool   `yaml:"enable_foreign_keys" json:"enable_foreign_keys" toml:"enable_foreign_keys"`
}

func (d *DatabaseConfig) ApplyDefaults() {
	if d.Kind == "" {
		d.Kind = "sqlite"
	}
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
}

// OptionsConfig holds cross-cutting pipeline knobs.
type OptionsConfig struct {
	// MaxHealthcheckLag is the largest acceptable (tip - lastDispatchedBlock)
	// before the orchestrator reports a network as unhealthy.
	MaxHealthcheckLag       uint64          `yaml:"max_healthcheck_lag" json:"max_healthcheck_lag" toml:"max_healthcheck_lag"`
	MaxHealthcheckDuration  common.Duration `yaml:"max_healthcheck_duration" json:"max_healthcheck_duration" toml:"max_healthcheck_duration"`
	HandlerRetryAttempts    int             `yaml:"handler_retry_attempts" json:"handler_retry_attempts" toml:"handler_retry_attempts"`
}

func (o *OptionsConfig) ApplyDefaults() {
	if o.MaxHealthcheckLag == 0 {
		o.MaxHealthcheckLag = 10
	}
	if o.MaxHealthcheckDuration.Duration == 0 {
		o.MaxHealthcheckDuration = common.NewDuration(defaultHealthcheckDuration)
	}
	if o.HandlerRetryAttempts == 0 {
		o.HandlerRetryAttempts = 3
	}
}

// LoggingConfig configures the ambient structured logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" toml:"level"`
	Development bool   `yaml:"development" json:"development" toml:"development"`
}

func (l *LoggingConfig) ApplyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
}

// RetryConfig configures the RPC Gateway's backoff policy.
type RetryConfig struct {
	MaxAttempts       int             `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`
	InitialBackoff    common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`
	MaxBackoff        common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`
	BackoffMultiplier float64         `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
	CallTimeout       common.Duration `yaml:"call_timeout" json:"call_timeout" toml:"call_timeout"`
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    common.NewDuration(200 * defaultMillisecond),
		MaxBackoff:        common.NewDuration(30 * defaultSecond),
		BackoffMultiplier: 2.0,
		CallTimeout:       common.NewDuration(30 * defaultSecond),
	}
}

// MaintenanceConfig configures periodic WAL checkpointing / VACUUM.
type MaintenanceConfig struct {
	Enabled           bool            `yaml:"enabled" json:"enabled" toml:"enabled"`
	VacuumOnStartup   bool            `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`
	CheckInterval     common.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`
	WALCheckpointMode string          `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled" toml:"enabled"`
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`
	Path          string `yaml:"path" json:"path" toml:"path"`
}

func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// CORSConfig configures the API server's cross-origin request handling.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins"`
}

// APIConfig configures the health/status HTTP server.
type APIConfig struct {
	Enabled       bool            `yaml:"enabled" json:"enabled" toml:"enabled"`
	ListenAddress string          `yaml:"listen_address" json:"listen_address" toml:"listen_address"`
	ReadTimeout   common.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`
	WriteTimeout  common.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`
	IdleTimeout   common.Duration `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout"`
	CORS          CORSConfig      `yaml:"cors" json:"cors" toml:"cors"`
}

func (a *APIConfig) ApplyDefaults() {
	if a.ListenAddress == "" {
		a.ListenAddress = ":8090"
	}
	if a.ReadTimeout.Duration == 0 {
		a.ReadTimeout = common.NewDuration(5 * defaultSecond)
	}
	if a.WriteTimeout.Duration == 0 {
		a.WriteTimeout = common.NewDuration(10 * defaultSecond)
	}
	if a.IdleTimeout.Duration == 0 {
		a.IdleTimeout = common.NewDuration(60 * defaultSecond)
	}
}

const (
	defaultMillisecond        = 1_000_000 // time.Millisecond, spelled out to avoid importing "time" just for constants
	defaultSecond             = 1000 * defaultMillisecond
	defaultPollingInterval    = 2 * defaultSecond
	defaultHealthcheckDuration = 60 * defaultSecond
)

// ApplyDefaults fills in every optional field across the configuration tree.
func (c *Config) ApplyDefaults() {
	for name, n := range c.Networks {
		n.ApplyDefaults()
		c.Networks[name] = n
	}
	c.Database.ApplyDefaults()
	c.Options.ApplyDefaults()
	c.Logging.ApplyDefaults()
	if c.Retry == nil {
		c.Retry = DefaultRetryConfig()
	}
	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
	if c.API != nil {
		c.API.ApplyDefaults()
	}
}

// Validate checks structural invariants of the configuration that the data
// model requires: startBlock/endBlock ordering, lowercase addresses, exactly
// one child-address location per factory, and referential integrity between
// sources and networks.
func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("at least one network must be configured")
	}
	for name, n := range c.Networks {
		if n.ChainID == 0 {
			return fmt.Errorf("network %q: chain_id is required", name)
		}
		if n.Transport == "" {
			return fmt.Errorf("network %q: transport is required", name)
		}
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	for name, s := range c.Sources {
		if _, ok := c.Networks[s.Network]; !ok {
			return fmt.Errorf("source %q: references unknown network %q", name, s.Network)
		}
		if s.ABI == "" {
			return fmt.Errorf("source %q: abi is required", name)
		}

		hasStatic := len(s.Address) > 0
		hasFactory := s.Factory != nil
		if hasStatic == hasFactory {
			return fmt.Errorf("source %q: exactly one of address or factory must be set", name)
		}
		for _, addr := range s.Address {
			if addr != strings.ToLower(addr) {
				return fmt.Errorf("source %q: address %q must be lowercase hex", name, addr)
			}
		}
		if hasFactory {
			if s.Factory.Address == "" || s.Factory.Event == "" || s.Factory.Parameter == "" {
				return fmt.Errorf("source %q: factory requires address, event and parameter", name)
			}
		}
		if s.EndBlock != nil && *s.EndBlock < s.StartBlock {
			return fmt.Errorf("source %q: end_block must be >= start_block", name)
		}
	}

	switch c.Database.Kind {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database.filename is required for sqlite")
		}
	case "postgres":
		return fmt.Errorf("database.kind postgres is accepted for config compatibility but not implemented by this engine")
	default:
		return fmt.Errorf("database.kind must be one of: sqlite, postgres")
	}

	return nil
}
