package nuclear

import (
	"reflect"
	"sync/atomic"

	"github.com/nuclear-go/nuclear/dsl"
	"github.com/nuclear-go/nuclear/message"
	"github.com/nuclear-go/nuclear/reaction"
)

// Reactor is the base type every application reactor embeds, the way
// original_source's Reactor base class supplies on<...>/emit/log to
// derived reactors. It carries the display name and log level filter
// (SPEC_FULL.md §6 items 1 and 4) plus back-references installed by
// (*PowerPlant).Install.
type Reactor struct {
	name       string
	powerPlant *PowerPlant
	logLevel   atomic.Int64
}

// Name returns the reactor's display name, defaulting to its Go type name
// (SPEC_FULL.md §6 item 4) unless SetName was called.
func (r *Reactor) Name() string {
	if r.name != "" {
		return r.name
	}
	return "UnnamedReactor"
}

// SetName overrides the display name used in logs and traces.
func (r *Reactor) SetName(name string) { r.name = name }

// SetLogLevel sets the reactor's own minimum log level, filtering
// log<Level>() calls before the process-wide minimum is checked
// (SPEC_FULL.md §6 item 1). Defaults to message.LogTrace (no filtering).
func (r *Reactor) SetLogLevel(level message.LogLevel) { r.logLevel.Store(int64(level)) }

// LogLevel returns the reactor's own minimum log level.
func (r *Reactor) LogLevel() message.LogLevel { return message.LogLevel(r.logLevel.Load()) }

func (r *Reactor) init(pp *PowerPlant, name string) {
	r.powerPlant = pp
	r.name = name
	r.logLevel.Store(int64(message.LogTrace))
}

// PowerPlant returns the owning PowerPlant, available once installed.
func (r *Reactor) PowerPlant() *PowerPlant { return r.powerPlant }

// log forwards to the PowerPlant's two-stage filter (spec §6), applying
// this reactor's own floor first.
func (r *Reactor) log(level message.LogLevel, text string) {
	if level < r.LogLevel() {
		return
	}
	r.powerPlant.logMessage(r.Name(), level, text)
}

func (r *Reactor) LogTrace(text string) { r.log(message.LogTrace, text) }
func (r *Reactor) LogDebug(text string) { r.log(message.LogDebug, text) }
func (r *Reactor) LogInfo(text string)  { r.log(message.LogInfo, text) }
func (r *Reactor) LogWarn(text string)  { r.log(message.LogWarn, text) }
func (r *Reactor) LogError(text string) { r.log(message.LogError, text) }
func (r *Reactor) LogFatal(text string) { r.log(message.LogFatal, text) }

// Emit publishes value from this reactor with no cause (as if called from
// outside any task). Use EmitFrom with the *reaction.Task obtained via a
// callback parameter (see dsl.On0..On3) to preserve cause identity instead.
func (r *Reactor) Emit(scope Scope, value any, targets ...EmitTarget) {
	r.powerPlant.Emit(scope, value, targets...)
}

// EmitFrom publishes value with cause attributed to the given task,
// implementing spec §2's cause chain for emits made from within a running
// reaction callback. t is the *reaction.Task a dsl.On0..On3-adapted
// callback receives as its first argument.
func (r *Reactor) EmitFrom(t *reaction.Task, scope Scope, value any, targets ...EmitTarget) {
	r.powerPlant.emitFrom(t, scope, value, targets...)
}

// Bind composes words into a reaction and registers it with the owning
// PowerPlant (spec §4.1's Fuse contract, invoked once per on<...>
// declaration an application reactor's Install method makes).
// callbackName should name the Go method the callback wraps, for
// statistics and trace readability.
func (r *Reactor) Bind(words []any, callback func(t *reaction.Task, args []any) error, callbackName string, bindArgs ...any) error {
	pp := r.powerPlant
	ctx := &dsl.BindContext{
		Stores:      pp.stores,
		Chrono:      pp.chronoSvc,
		Registry:    pp.registry,
		Emit:        pp.emitLocal,
		DefaultPool: pp.defaultPool,
	}
	rx, err := dsl.Fuse(ctx, r.Name(), callbackName, words, callback, bindArgs...)
	if err != nil {
		return err
	}
	rx.Stats = pp.statSink
	pp.registerReaction(rx)
	return nil
}

// displayNameFor derives a reactor's default name from its Go type,
// mirroring original_source's RTTI-demangled display name
// (SPEC_FULL.md §6 item 4).
func displayNameFor(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}
