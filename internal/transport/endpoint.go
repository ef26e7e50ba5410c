// SPDX-License-Identifier: MIT
package transport

import (
	"sync"

	applog "dspctl/internal/log"

	"github.com/google/uuid"
)

var endpointLog = applog.Named("endpoint")

// Call is one request recorded by an Endpoint.
type Call struct {
	Op   Op
	Slot int32
	Sub  int32
}

type bufferKey struct{ slot, sub int32 }

// Endpoint is an in-memory engine speaking the slot protocol. It stores
// every written value, mirrors commit hashes to their readback slots and
// can be told to reject individual slots.
type Endpoint struct {
	mu sync.Mutex

	effect       uuid.UUID
	pid          int32
	nextPID      int32
	sampleRate   int32
	bufferLength int32
	blockLength  int32
	commits      int32

	shorts  map[int32]int16
	ints    map[int32]int32
	floats  map[int32][]float32
	buffers map[bufferKey][]byte
	rejects map[int32]Status

	sessions map[uuid.UUID]int32
	calls    []Call
}

// EndpointOption configures an Endpoint.
type EndpointOption func(*Endpoint)

// WithSampleRate sets the reported sample rate.
func WithSampleRate(rate int32) EndpointOption {
	return func(e *Endpoint) { e.sampleRate = rate }
}

// WithRejectedSlots makes the endpoint answer StatusBadValue for slots.
func WithRejectedSlots(slots ...int32) EndpointOption {
	return func(e *Endpoint) {
		for _, s := range slots {
			e.rejects[s] = StatusBadValue
		}
	}
}

// NewEndpoint returns a live endpoint hosting EffectEngine.
func NewEndpoint(opts ...EndpointOption) *Endpoint {
	e := &Endpoint{
		effect:       EffectEngine,
		pid:          1000,
		nextPID:      1001,
		sampleRate:   48000,
		bufferLength: 1024,
		blockLength:  1024,
		shorts:       make(map[int32]int16),
		ints:         make(map[int32]int32),
		floats:       make(map[int32][]float32),
		buffers:      make(map[bufferKey][]byte),
		rejects:      make(map[int32]Status),
		sessions:     make(map[uuid.UUID]int32),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Reject makes every call on slot fail with st.
func (e *Endpoint) Reject(slot int32, st Status) {
	e.mu.Lock()
	e.rejects[slot] = st
	e.mu.Unlock()
}

// Accept undoes Reject.
func (e *Endpoint) Accept(slot int32) {
	e.mu.Lock()
	delete(e.rejects, slot)
	e.mu.Unlock()
}

// Kill simulates a crashed engine: the pid reads as 0 until the next
// handshake creates a new instance.
func (e *Endpoint) Kill() {
	e.mu.Lock()
	e.pid = 0
	e.mu.Unlock()
}

// SetSampleRate changes the reported sample rate.
func (e *Endpoint) SetSampleRate(rate int32) {
	e.mu.Lock()
	e.sampleRate = rate
	e.mu.Unlock()
}

// Calls returns the recorded requests.
func (e *Endpoint) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// ResetCalls forgets recorded requests.
func (e *Endpoint) ResetCalls() {
	e.mu.Lock()
	e.calls = nil
	e.mu.Unlock()
}

// Short returns the last value written to slot with OpSetShort.
func (e *Endpoint) Short(slot int32) (int16, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.shorts[slot]
	return v, ok
}

// Int returns the last value written to slot with OpSetInt.
func (e *Endpoint) Int(slot int32) (int32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.ints[slot]
	return v, ok
}

// Floats returns the last array written to slot.
func (e *Endpoint) Floats(slot int32) ([]float32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.floats[slot]
	return append([]float32(nil), v...), ok
}

// Buffer returns the last buffer written to (slot, sub).
func (e *Endpoint) Buffer(slot, sub int32) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.buffers[bufferKey{slot, sub}]
	return append([]byte(nil), v...), ok
}

// Handle answers one request.
func (e *Endpoint) Handle(req Request) Reply {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, Call{Op: req.Op, Slot: req.Slot, Sub: req.Sub})
	reply := Reply{Seq: req.Seq}
	if st, ok := e.rejects[req.Slot]; ok && req.Op != OpHello {
		reply.Status = st
		return reply
	}

	switch req.Op {
	case OpHello:
		h, err := ParseHello(req.Payload)
		if err != nil {
			reply.Status = StatusBadValue
			return reply
		}
		if h.EffectType != e.effect {
			reply.Status = StatusInvalidOperation
			return reply
		}
		if e.pid <= 0 {
			e.pid = e.nextPID
			e.nextPID++
		}
		e.sessions[h.Session] = h.Priority
		endpointLog.Infof("session %s attached (priority %d, pid %d)", h.Session, h.Priority, e.pid)
	case OpSetShort:
		if len(req.Payload) != 2 {
			reply.Status = StatusBadValue
			return reply
		}
		e.shorts[req.Slot] = int16(uint16(req.Payload[0])<<8 | uint16(req.Payload[1]))
		e.commits++
	case OpSetInt:
		if len(req.Payload) != 4 {
			reply.Status = StatusBadValue
			return reply
		}
		e.ints[req.Slot] = int32(uint32(req.Payload[0])<<24 | uint32(req.Payload[1])<<16 | uint32(req.Payload[2])<<8 | uint32(req.Payload[3]))
		e.commits++
	case OpSetFloats:
		v, err := DecodeFloats(req.Payload)
		if err != nil || len(v) == 0 {
			reply.Status = StatusBadValue
			return reply
		}
		e.floats[req.Slot] = v
		e.commits++
	case OpSetBuffer:
		e.buffers[bufferKey{req.Slot, req.Sub}] = append([]byte(nil), req.Payload...)
		e.commits++
	case OpGetInt:
		v, ok := e.read(req.Slot)
		if !ok {
			reply.Status = StatusBadValue
			return reply
		}
		reply.Value = v
	default:
		reply.Status = StatusInvalidOperation
	}
	return reply
}

// read resolves an integer read. Caller holds e.mu.
func (e *Endpoint) read(slot int32) (int32, bool) {
	switch slot {
	case SlotPID:
		return e.pid, true
	case SlotSampleRate:
		return e.sampleRate, true
	case SlotCommitCount:
		return e.commits, true
	case SlotBufferLength:
		return e.bufferLength, true
	case SlotAllocatedBlock:
		return e.blockLength, true
	case SlotHashGraphicEq, SlotHashDdc, SlotHashLiveprog, SlotHashConvolver:
		if v, ok := e.ints[slot-commitToReadback]; ok {
			return v, true
		}
		return NoHash, true
	}
	if v, ok := e.ints[slot]; ok {
		return v, true
	}
	if v, ok := e.shorts[slot]; ok {
		return int32(v), true
	}
	return 0, false
}
