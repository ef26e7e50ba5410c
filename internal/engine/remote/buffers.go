// SPDX-License-Identifier: MIT
package remote

import (
	"context"
	"encoding/binary"

	"dspctl/internal/dsp"
	"dspctl/internal/transport"
)

// bufferSlots locates a buffer carrying feature on the endpoint.
type bufferSlots struct {
	slot, sub int32
	commit    int32
	readback  int32
	toggle    int32
}

var bufferFeatures = map[dsp.Namespace]bufferSlots{
	dsp.GraphicEqualizer: {transport.SlotTextBuffer, transport.SubGraphicEq, transport.SlotCommitGraphicEq, transport.SlotHashGraphicEq, transport.SlotGraphicEqEnable},
	dsp.DynamicRangeFile: {transport.SlotTextBuffer, transport.SubDdc, transport.SlotCommitDdc, transport.SlotHashDdc, transport.SlotDdcEnable},
	dsp.LiveProgram:      {transport.SlotTextBuffer, transport.SubLiveprog, transport.SlotCommitLiveprog, transport.SlotHashLiveprog, transport.SlotLiveprogEnable},
	dsp.Convolver:        {transport.SlotImpulseBuffer, transport.SubConvolver, transport.SlotCommitConvolver, transport.SlotHashConvolver, transport.SlotConvolverEnable},
}

// bufferOrder is the commit slot order.
var bufferOrder = []dsp.Namespace{dsp.GraphicEqualizer, dsp.DynamicRangeFile, dsp.LiveProgram, dsp.Convolver}

// bufferState is the local view of a buffer on the current connection.
type bufferState struct {
	hash int32
	sent bool
}

// commitBuffer transmits data when enabling and the endpoint's hash differs
// from hash, or nothing was sent on this connection yet. The feature toggle
// is always written.
func (b *Backend) commitBuffer(ctx context.Context, ch transport.Channel, ns dsp.Namespace, enable bool, data []byte, hash int32) error {
	f := bufferFeatures[ns]
	st := b.buffers[ns]

	log := b.log.With(ns.String())
	prev, err := ch.GetInt(ctx, f.readback)
	if err != nil {
		log.Debugf("hash readback failed, using local cache: %v", err)
		prev = st.hash
	}
	log.Infof("hash before: %d, current: %d", prev, hash)

	if enable && (prev != hash || !st.sent) {
		if err := ch.SetBuffer(ctx, f.slot, f.sub, data); err != nil {
			return reject(ns, err)
		}
		if err := ch.SetInt(ctx, f.commit, hash); err != nil {
			return reject(ns, err)
		}
		st.hash = hash
		st.sent = true
	}
	return reject(ns, ch.SetShort(ctx, f.toggle, boolShort(enable)))
}

// encodeImpulse lays out an impulse response as channels | frames |
// interleaved samples, all BigEndian.
func encodeImpulse(imp dsp.Impulse) []byte {
	head := make([]byte, 8, 8+4*len(imp.Samples))
	binary.BigEndian.PutUint32(head[0:], uint32(imp.Channels))
	binary.BigEndian.PutUint32(head[4:], uint32(imp.Frames))
	return append(head, transport.EncodeFloats(imp.Samples)...)
}

func (b *Backend) SetGraphicEq(ctx context.Context, s dsp.GraphicEqSettings) error {
	return b.do(func(ch transport.Channel) error {
		return b.commitBuffer(ctx, ch, dsp.GraphicEqualizer, s.Enabled, []byte(s.Bands), dsp.ChecksumString(s.Bands))
	})
}

func (b *Backend) SetDynamicRangeFile(ctx context.Context, s dsp.DynamicRangeFileSettings) error {
	return b.do(func(ch transport.Channel) error {
		return b.commitBuffer(ctx, ch, dsp.DynamicRangeFile, s.Enabled, []byte(s.Filter), dsp.ChecksumString(s.Filter))
	})
}

func (b *Backend) SetLiveProgram(ctx context.Context, s dsp.LiveProgramSettings) error {
	return b.do(func(ch transport.Channel) error {
		return b.commitBuffer(ctx, ch, dsp.LiveProgram, s.Enabled, []byte(s.Script), dsp.ChecksumString(s.Script))
	})
}

func (b *Backend) SetConvolver(ctx context.Context, s dsp.ConvolverSettings) error {
	return b.do(func(ch transport.Channel) error {
		var data []byte
		if s.Enabled {
			data = encodeImpulse(s.Impulse)
		}
		return b.commitBuffer(ctx, ch, dsp.Convolver, s.Enabled, data, s.Impulse.Hash)
	})
}
