package nuclear

import (
	"fmt"
	"io"

	"github.com/joeycumines/logiface"

	"github.com/nuclear-go/nuclear/message"
	"github.com/nuclear-go/nuclear/topology"
)

// config holds the resolved construction-time settings for a PowerPlant
// (spec §6: "PowerPlant(config) where config is a struct with:
// default_pool_concurrency: int, and optional network config... Unknown
// fields are rejected" - enforced here by validated Option application
// rather than an open struct literal).
type config struct {
	defaultPoolConcurrency int
	pools                  []*topology.PoolDescriptor
	logger                 *logiface.Logger[logiface.Event]
	network                NetworkConfig
	minimumLogLevel        message.LogLevel
	traceWriter            io.Writer
}

// NetworkConfig names the out-of-scope network collaborator's contract
// shape (spec §1 non-goal: wire transport itself is not implemented; the
// configuration surface is, per SPEC_FULL.md §6 item 6).
type NetworkConfig struct {
	Name      string
	Multicast string
	Port      int
}

// Option configures a PowerPlant at construction, mirroring the teacher
// eventloop's LoopOption: a small interface wrapping a validated apply
// closure, rather than an open struct callers fill in directly.
type Option interface {
	apply(*config) error
}

type optionFunc func(*config) error

func (f optionFunc) apply(cfg *config) error { return f(cfg) }

// WithDefaultPoolConcurrency sets the worker count for reactions that
// don't declare a Pool word. Must be >= 0; zero means main-thread only.
func WithDefaultPoolConcurrency(n int) Option {
	return optionFunc(func(cfg *config) error {
		if n < 0 {
			return fmt.Errorf("nuclear: default pool concurrency must be >= 0, got %d", n)
		}
		cfg.defaultPoolConcurrency = n
		return nil
	})
}

// WithPool registers an additional named pool up front, so reactions can
// reference it by descriptor before any reaction using it is installed.
func WithPool(d *topology.PoolDescriptor) Option {
	return optionFunc(func(cfg *config) error {
		if d == nil {
			return fmt.Errorf("nuclear: WithPool: nil descriptor")
		}
		cfg.pools = append(cfg.pools, d)
		return nil
	})
}

// WithLogger installs the logiface.Logger that messages passing
// logMessage's filter (reactor log<Level> calls and the Network-scope emit
// notice) are written through. Bind errors, dropped tasks, recovered
// callback panics and chrono activity are not logged through it. Defaults
// to a disabled logger, matching logiface's
// own zero-value/LevelDisabled contract.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return optionFunc(func(cfg *config) error {
		cfg.logger = l
		return nil
	})
}

// WithNetwork sets the (inert) network configuration surface.
func WithNetwork(nc NetworkConfig) Option {
	return optionFunc(func(cfg *config) error {
		cfg.network = nc
		return nil
	})
}

// WithMinimumLogLevel sets the process-wide floor log<Level>() calls must
// clear after a reactor's own display level filter (spec §6).
func WithMinimumLogLevel(level message.LogLevel) Option {
	return optionFunc(func(cfg *config) error {
		cfg.minimumLogLevel = level
		return nil
	})
}

// WithTrace enables the built-in trace reactor (spec §4.10), encoding
// every statistics event to w through the versioned binary format with
// interned strings. w is written from the trace pool's single worker
// goroutine only, so it need not be safe for concurrent use.
func WithTrace(w io.Writer) Option {
	return optionFunc(func(cfg *config) error {
		if w == nil {
			return fmt.Errorf("nuclear: WithTrace: nil writer")
		}
		cfg.traceWriter = w
		return nil
	})
}

func resolveOptions(opts []Option) (*config, error) {
	cfg := &config{
		defaultPoolConcurrency: 1,
		minimumLogLevel:        message.LogInfo,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = logiface.New[logiface.Event](logiface.WithLevel[logiface.Event](logiface.LevelDisabled))
	}
	return cfg, nil
}
