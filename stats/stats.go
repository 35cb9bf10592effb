// Package stats implements the statistics/tracing fabric from spec §4.10:
// every reaction task reports created/started/finished/blocked/missing_data
// lifecycle events, delivered on the same typed bus ordinary messages use so
// other reactions can subscribe to them like any other data.
//
// Grounded on the teacher eventloop's microtask/macrotask instrumentation
// hooks (a narrow callback invoked at well-defined lifecycle points, never a
// God object observing everything) and, for tracing, the teacher's
// logiface-stumpy encoder's append-to-buffer style.
package stats

import (
	"reflect"

	"github.com/nuclear-go/nuclear/message"
	"github.com/nuclear-go/nuclear/reaction"
)

// NewSink returns a reaction.StatSink that wraps every event in a
// message.Statistics and forwards it through emit, so statistics become
// ordinary typed data on the bus (spec §4.10: "traces are produced by a
// separate trace reactor that subscribes to statistics events").
//
// emit is expected to be the same LOCAL-scope emit path ordinary user emits
// use; reactions that themselves subscribe to message.Statistics are
// exempted from generating further events by dsl.Fuse (ExemptFromStats),
// breaking the "statistics cause more statistics" feedback loop this sink
// would otherwise create.
func NewSink(emit func(t reflect.Type, value any)) reaction.StatSink {
	t := reflect.TypeOf(message.Statistics{})
	return func(ev reaction.StatEvent) {
		emit(t, message.Statistics{Event: ev})
	}
}
