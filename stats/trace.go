package stats

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/nuclear-go/nuclear/message"
	"github.com/nuclear-go/nuclear/reaction"
)

// ErrEncoderClosed is returned by Encode once Close has been called.
var ErrEncoderClosed = errors.New("nuclear/stats: encoder is closed")

// traceMagic/traceVersion identify the binary trace format (spec §4.10:
// "a versioned binary format with interned string tables for reactor,
// event, and log-message strings").
var traceMagic = [4]byte{'N', 'U', 'C', 'T'}

const traceVersion = 1

// Record opcodes. opDefineString must precede the first opRecord that
// references its id; an encoder never forward-references a string.
const (
	opDefineString byte = 0x00
	opRecord       byte = 0x01
)

// Encoder writes StatEvent records to an underlying stream using a
// versioned binary format with an inline interned string table: the first
// time a reactor name, callback name, or error message is seen it is
// emitted once as an opDefineString record and thereafter referenced by a
// varint id, so repeated events from the same reaction do not repeat their
// strings.
//
// Encoder is safe for concurrent use; the trace reactor runs in a
// single-concurrency persistent pool so contention is not expected, but
// Encode may also be called directly in tests.
type Encoder struct {
	mu      sync.Mutex
	w       *bufio.Writer
	strings map[string]uint64
	nextID  uint64
	closed  bool
}

// NewEncoder wraps w, writing the format header immediately.
func NewEncoder(w io.Writer) (*Encoder, error) {
	e := &Encoder{
		w:       bufio.NewWriter(w),
		strings: make(map[string]uint64),
	}
	if _, err := e.w.Write(traceMagic[:]); err != nil {
		return nil, err
	}
	if err := e.w.WriteByte(traceVersion); err != nil {
		return nil, err
	}
	if err := e.w.Flush(); err != nil {
		return nil, err
	}
	return e, nil
}

// Encode appends one StatEvent to the trace. Returns ErrEncoderClosed after
// Close, and otherwise an error only on underlying write failure; callers (the trace reactor's callback) treat
// that as a CallbackException per spec §7, recorded on the task itself
// rather than panicking the worker.
func (e *Encoder) Encode(ev reaction.StatEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEncoderClosed
	}

	reactorID := e.intern(ev.ReactorName)
	callbackID := e.intern(ev.CallbackName)
	var errID uint64
	var hasErr bool
	if ev.Err != nil {
		errID = e.intern(ev.Err.Error())
		hasErr = true
	}

	var poolID uint64
	if ev.Pool != nil {
		poolID = uint64(ev.Pool.ID)
	}

	if err := e.w.WriteByte(opRecord); err != nil {
		return err
	}
	if err := e.putByte(byte(ev.Kind)); err != nil {
		return err
	}
	for _, v := range []uint64{
		reactorID,
		callbackID,
		uint64(ev.ReactionID),
		uint64(ev.TaskID),
		uint64(ev.Cause.ReactionID),
		uint64(ev.Cause.TaskID),
		uint64(ev.Wall.UnixNano()),
		uint64(ev.Steady.UnixNano()),
		uint64(ev.CPU),
		poolID,
		ev.ThreadID,
	} {
		if err := e.putVarint(v); err != nil {
			return err
		}
	}
	if hasErr {
		if err := e.putByte(1); err != nil {
			return err
		}
		if err := e.putVarint(errID); err != nil {
			return err
		}
	} else {
		if err := e.putByte(0); err != nil {
			return err
		}
	}
	return nil
}

// intern returns s's id, defining it in the stream the first time it is
// seen. Must be called with mu held.
func (e *Encoder) intern(s string) uint64 {
	if id, ok := e.strings[s]; ok {
		return id
	}
	id := e.nextID
	e.nextID++
	e.strings[s] = id
	_ = e.w.WriteByte(opDefineString)
	_ = e.putVarint(id)
	_ = e.putVarint(uint64(len(s)))
	_, _ = e.w.WriteString(s)
	return id
}

func (e *Encoder) putByte(b byte) error {
	return e.w.WriteByte(b)
}

func (e *Encoder) putVarint(v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := e.w.Write(buf[:n])
	return err
}

// Flush flushes any buffered bytes to the underlying writer without
// closing it.
func (e *Encoder) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w.Flush()
}

// Close flushes and marks the encoder closed; further Encode calls return
// an error. Does not close the underlying io.Writer.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return e.w.Flush()
}

// Reactor consumes message.Statistics events (via a Trigger[message.Statistics]
// word supplied by the caller, see HandleStatistics) and encodes each
// wrapped StatEvent. It holds no pool/scheduling knowledge itself - the
// caller is responsible for fusing it into a reaction bound to a
// `persistent` single-concurrency pool (spec §4.10: "runs in a persistent
// single-thread pool so that trace records emitted during shutdown are
// captured").
type Reactor struct {
	enc *Encoder
}

// NewReactor wraps an Encoder for use as a reaction callback body.
func NewReactor(enc *Encoder) *Reactor {
	return &Reactor{enc: enc}
}

// HandleStatistics is the callback body a dsl.Fuse composition invokes;
// it takes no *reaction.Task, so wrap it in a dsl.On1 callback that
// ignores the task when fusing the trace reaction.
func (r *Reactor) HandleStatistics(msg message.Statistics) error {
	return r.enc.Encode(msg.Event)
}
