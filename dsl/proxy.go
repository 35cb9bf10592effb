package dsl

import (
	"reflect"
	"sync"

	"github.com/nuclear-go/nuclear/reaction"
	"github.com/nuclear-go/nuclear/topology"
)

// ProxyHooks lets a type that does not itself implement any of the hook
// interfaces still act as a DSL word (spec §4.1 "DSL proxies... permits
// making third-party types into DSL words without modifying them"). Every
// field is optional; Fuse falls back to a registered proxy's hook only
// when the word value itself does not satisfy the corresponding
// interface.
type ProxyHooks struct {
	Bind          func(word any, ctx *BindContext, r *reaction.Reaction) func()
	Get           func(word any, t *reaction.Task) (any, bool)
	Precondition  func(word any, t *reaction.Task) bool
	Priority      func(word any, t *reaction.Task) int
	Groups        func(word any, t *reaction.Task) []*topology.GroupDescriptor
	Pool          func(word any, t *reaction.Task) *topology.PoolDescriptor
	PreRun        func(word any, t *reaction.Task)
	PostRun       func(word any, t *reaction.Task)
	Postcondition func(word any, t *reaction.Task)
	Reschedule    func(word any, t *reaction.Task) (*reaction.Task, bool)
}

var (
	proxyMu sync.RWMutex
	proxies = map[reflect.Type]ProxyHooks{}
)

// RegisterProxy associates hooks with every word of type wordType (e.g.
// reflect.TypeOf(ThirdPartyWord{})). Later registrations for the same type
// replace earlier ones.
func RegisterProxy(wordType reflect.Type, hooks ProxyHooks) {
	proxyMu.Lock()
	defer proxyMu.Unlock()
	proxies[wordType] = hooks
}

func proxyFor(word any) (ProxyHooks, bool) {
	proxyMu.RLock()
	defer proxyMu.RUnlock()
	h, ok := proxies[reflect.TypeOf(word)]
	return h, ok
}
