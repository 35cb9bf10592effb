package dsl

import (
	"reflect"
	"strings"

	"github.com/nuclear-go/nuclear/message"
	"github.com/nuclear-go/nuclear/reaction"
	"github.com/nuclear-go/nuclear/topology"
)

var statisticsType = reflect.TypeOf(message.Statistics{})

// Fuse composes words into a single reaction.Reaction, implementing spec
// §4.1's per-hook composition rules. bindArgs (if any) are distributed
// across words implementing ArgConsumer before any hook is composed, so a
// word can use its assigned arguments while contributing hooks.
//
// callback receives the tuple-concatenated result of every word's Get, in
// declaration order, as a flat []any - one slot per Getter word (a word
// whose natural value is itself a slice, such as Last[T], contributes
// that slice as a single slot rather than being splatted further).
func Fuse(ctx *BindContext, reactorName, callbackName string, words []any, callback func(t *reaction.Task, args []any) error, bindArgs ...any) (*reaction.Reaction, error) {
	if err := distributeArgs(words, bindArgs); err != nil {
		return nil, err
	}

	hooks := reaction.Hooks{Callback: callback}
	single := false
	exempt := false

	var getters []any
	var preconditions []any
	var prioritizers []any
	var groupers []any
	var poolWord any
	var poolName string
	var preRunners []any
	var postRunners []any
	var postconditioners []any
	var reschedulers []any

	summary := make([]string, 0, len(words))

	for _, w := range words {
		summary = append(summary, wordName(w))

		if sm, ok := w.(SingleMarker); ok && sm.IsSingle() {
			single = true
		}
		if ts, ok := w.(TypeSubscriber); ok && ts.SubscribedType() == statisticsType {
			exempt = true
		}

		if _, ok := hookGet(w); ok {
			getters = append(getters, w)
		}
		if _, ok := hookPrecondition(w); ok {
			preconditions = append(preconditions, w)
		}
		if _, ok := hookPriority(w); ok {
			prioritizers = append(prioritizers, w)
		}
		if _, ok := hookGroups(w); ok {
			groupers = append(groupers, w)
		}
		if _, ok := hookPool(w); ok {
			if poolWord != nil {
				return nil, &MultiplePoolError{First: poolName, Second: wordName(w)}
			}
			poolWord = w
			poolName = wordName(w)
		}
		if _, ok := hookPreRun(w); ok {
			preRunners = append(preRunners, w)
		}
		if _, ok := hookPostRun(w); ok {
			postRunners = append(postRunners, w)
		}
		if _, ok := hookPostcondition(w); ok {
			postconditioners = append(postconditioners, w)
		}
		if _, ok := hookReschedule(w); ok {
			reschedulers = append(reschedulers, w)
		}
	}

	if len(getters) > 0 {
		hooks.Get = func(t *reaction.Task) ([]any, bool) {
			out := make([]any, 0, len(getters))
			for _, w := range getters {
				fn, _ := hookGet(w)
				v, ok := fn(t)
				if !ok {
					return nil, false
				}
				out = append(out, v)
			}
			return out, true
		}
	}

	if len(preconditions) > 0 {
		hooks.Precondition = func(t *reaction.Task) bool {
			for _, w := range preconditions {
				fn, _ := hookPrecondition(w)
				if !fn(t) {
					return false
				}
			}
			return true
		}
	}

	if len(prioritizers) > 0 {
		hooks.Priority = func(t *reaction.Task) int {
			best := 0
			for i, w := range prioritizers {
				fn, _ := hookPriority(w)
				v := fn(t)
				if i == 0 || v > best {
					best = v
				}
			}
			return best
		}
	}

	if len(groupers) > 0 {
		hooks.Groups = func(t *reaction.Task) []*topology.GroupDescriptor {
			seen := make(map[topology.GroupID]bool)
			var out []*topology.GroupDescriptor
			for _, w := range groupers {
				fn, _ := hookGroups(w)
				for _, g := range fn(t) {
					if g == nil || seen[g.ID] {
						continue
					}
					seen[g.ID] = true
					out = append(out, g)
				}
			}
			return out
		}
	}

	if poolWord != nil {
		hooks.Pool = func(t *reaction.Task) *topology.PoolDescriptor {
			fn, _ := hookPool(poolWord)
			return fn(t)
		}
	}

	if len(preRunners) > 0 {
		hooks.PreRun = func(t *reaction.Task) {
			for _, w := range preRunners {
				fn, _ := hookPreRun(w)
				fn(t)
			}
		}
	}

	if len(postRunners) > 0 {
		hooks.PostRun = func(t *reaction.Task) {
			for _, w := range postRunners {
				fn, _ := hookPostRun(w)
				fn(t)
			}
		}
	}

	if len(postconditioners) > 0 {
		hooks.Postcondition = func(t *reaction.Task) {
			for _, w := range postconditioners {
				fn, _ := hookPostcondition(w)
				fn(t)
			}
		}
	}

	if len(reschedulers) > 0 {
		hooks.Reschedule = func(t *reaction.Task) (*reaction.Task, bool) {
			for _, w := range reschedulers {
				fn, _ := hookReschedule(w)
				next, forward := fn(t)
				if !forward {
					return nil, false
				}
				if next != nil {
					t = next
				}
			}
			return t, true
		}
	}

	r := reaction.New(reactorName, strings.Join(summary, ","), callbackName, single, hooks)
	r.ExemptFromStats = exempt
	r.DefaultPool = ctx.DefaultPool

	var unbinders []func()
	for _, w := range words {
		if fn, ok := hookBind(w); ok {
			if unbind := fn(ctx, r); unbind != nil {
				unbinders = append(unbinders, unbind)
			}
		}
	}
	r.Unbind = func() {
		for _, u := range unbinders {
			u()
		}
	}

	return r, nil
}

func wordName(w any) string {
	t := reflect.TypeOf(w)
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// The hook* helpers check the native interface first, falling back to a
// registered proxy (spec §4.1 "DSL proxies").

func hookBind(w any) (func(*BindContext, *reaction.Reaction) func(), bool) {
	if b, ok := w.(Binder); ok {
		return b.Bind, true
	}
	if p, ok := proxyFor(w); ok && p.Bind != nil {
		return func(ctx *BindContext, r *reaction.Reaction) func() { return p.Bind(w, ctx, r) }, true
	}
	return nil, false
}

func hookGet(w any) (func(*reaction.Task) (any, bool), bool) {
	if g, ok := w.(Getter); ok {
		return g.Get, true
	}
	if p, ok := proxyFor(w); ok && p.Get != nil {
		return func(t *reaction.Task) (any, bool) { return p.Get(w, t) }, true
	}
	return nil, false
}

func hookPrecondition(w any) (func(*reaction.Task) bool, bool) {
	if pc, ok := w.(Preconditioner); ok {
		return pc.Precondition, true
	}
	if p, ok := proxyFor(w); ok && p.Precondition != nil {
		return func(t *reaction.Task) bool { return p.Precondition(w, t) }, true
	}
	return nil, false
}

func hookPriority(w any) (func(*reaction.Task) int, bool) {
	if pr, ok := w.(Prioritizer); ok {
		return pr.Priority, true
	}
	if p, ok := proxyFor(w); ok && p.Priority != nil {
		return func(t *reaction.Task) int { return p.Priority(w, t) }, true
	}
	return nil, false
}

func hookGroups(w any) (func(*reaction.Task) []*topology.GroupDescriptor, bool) {
	if g, ok := w.(Grouper); ok {
		return g.Groups, true
	}
	if p, ok := proxyFor(w); ok && p.Groups != nil {
		return func(t *reaction.Task) []*topology.GroupDescriptor { return p.Groups(w, t) }, true
	}
	return nil, false
}

func hookPool(w any) (func(*reaction.Task) *topology.PoolDescriptor, bool) {
	if pl, ok := w.(Pooler); ok {
		return pl.Pool, true
	}
	if p, ok := proxyFor(w); ok && p.Pool != nil {
		return func(t *reaction.Task) *topology.PoolDescriptor { return p.Pool(w, t) }, true
	}
	return nil, false
}

func hookPreRun(w any) (func(*reaction.Task), bool) {
	if pr, ok := w.(PreRunner); ok {
		return pr.PreRun, true
	}
	if p, ok := proxyFor(w); ok && p.PreRun != nil {
		return func(t *reaction.Task) { p.PreRun(w, t) }, true
	}
	return nil, false
}

func hookPostRun(w any) (func(*reaction.Task), bool) {
	if pr, ok := w.(PostRunner); ok {
		return pr.PostRun, true
	}
	if p, ok := proxyFor(w); ok && p.PostRun != nil {
		return func(t *reaction.Task) { p.PostRun(w, t) }, true
	}
	return nil, false
}

func hookPostcondition(w any) (func(*reaction.Task), bool) {
	if pc, ok := w.(Postconditioner); ok {
		return pc.Postcondition, true
	}
	if p, ok := proxyFor(w); ok && p.Postcondition != nil {
		return func(t *reaction.Task) { p.Postcondition(w, t) }, true
	}
	return nil, false
}

func hookReschedule(w any) (func(*reaction.Task) (*reaction.Task, bool), bool) {
	if r, ok := w.(Rescheduler); ok {
		return r.Reschedule, true
	}
	if p, ok := proxyFor(w); ok && p.Reschedule != nil {
		return func(t *reaction.Task) (*reaction.Task, bool) { return p.Reschedule(w, t) }, true
	}
	return nil, false
}
