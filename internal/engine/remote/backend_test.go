// SPDX-License-Identifier: MIT
package remote

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"dspctl/internal/dsp"
	applog "dspctl/internal/log"
	"dspctl/internal/normalize"
	"dspctl/internal/settings"
	"dspctl/internal/transport"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// floatFilter rejects selected float array writes.
type floatFilter struct {
	transport.Channel
	reject func(slot int32, v []float32) bool
}

func (f *floatFilter) SetFloats(ctx context.Context, slot int32, v []float32) error {
	if f.reject != nil && f.reject(slot, v) {
		return &transport.StatusError{Op: transport.OpSetFloats, Slot: slot, Status: transport.StatusBadValue}
	}
	return f.Channel.SetFloats(ctx, slot, v)
}

func loopbackDialer(ep *transport.Endpoint, wrap func(transport.Channel) transport.Channel) transport.Dialer {
	return func(ctx context.Context) (transport.Channel, error) {
		c, err := transport.NewLoopback(ctx, ep, transport.Hello{EffectType: transport.EffectEngine, Session: uuid.New()})
		if err != nil {
			return nil, err
		}
		if wrap != nil {
			return wrap(c), nil
		}
		return c, nil
	}
}

func newTestBackend(t *testing.T, ep *transport.Endpoint, opts ...Option) (*Backend, *dsp.NoticeRecorder) {
	t.Helper()
	rec := &dsp.NoticeRecorder{}
	b, err := New(context.Background(), loopbackDialer(ep, nil), append([]Option{WithNotifier(rec)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	ep.ResetCalls()
	return b, rec
}

// stalledFloats fails the next float array writes with err without
// reaching the endpoint.
type stalledFloats struct {
	transport.Channel
	failures int
	err      error
}

func (s *stalledFloats) SetFloats(ctx context.Context, slot int32, v []float32) error {
	if s.failures > 0 {
		s.failures--
		return s.err
	}
	return s.Channel.SetFloats(ctx, slot, v)
}

func countCalls(ep *transport.Endpoint, op transport.Op, slot int32) int {
	n := 0
	for _, c := range ep.Calls() {
		if c.Op == op && c.Slot == slot {
			n++
		}
	}
	return n
}

func spectrum(enabled bool) dsp.SpectrumExtensionSettings {
	return dsp.SpectrumExtensionSettings{
		Enabled:        enabled,
		StrengthLinear: 0.1,
		ReferenceFreq:  7600,
		WetMix:         1,
		HighPassQ:      0.717,
		LowPassQ:       0.717,
		Harmonics:      dsp.DefaultHarmonics,
	}
}

func TestAdvancedPayloadFallsBackToLegacyOnce(t *testing.T) {
	ep := transport.NewEndpoint(transport.WithRejectedSlots(transport.SlotSpectrum))
	b, rec := newTestBackend(t, ep)
	ctx := context.Background()

	require.NoError(t, b.SetSpectrumExtension(ctx, spectrum(true)))
	require.NoError(t, b.SetSpectrumExtension(ctx, spectrum(true)))

	assert.Equal(t, 1, rec.Count(dsp.AdvancedUnsupported, dsp.SpectrumExtension))
	assert.Zero(t, rec.Count(dsp.FeatureUnsupported, dsp.SpectrumExtension))
	assert.Equal(t, 1, countCalls(ep, transport.OpSetFloats, transport.SlotSpectrum), "payload retried after fallback")

	c, ok := b.Capability(dsp.SpectrumExtension)
	require.True(t, ok)
	assert.Equal(t, Supported, c.Feature)
	assert.Equal(t, LegacyOnly, c.Payload)

	bark, _ := ep.Int(transport.SlotSpectrumBark)
	assert.Equal(t, int32(7600), bark)
	recon, _ := ep.Int(transport.SlotSpectrumBarkRecon)
	assert.Equal(t, int32(10), recon)
	on, _ := ep.Int(transport.SlotSpectrumEnable)
	assert.Equal(t, int32(1), on)
}

func TestFallbackLogNamesFeature(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	defer applog.SetOutput(os.Stderr)
	defer applog.SetLevel(applog.GetLevel())
	applog.SetLevel(applog.LevelWarn)

	ep := transport.NewEndpoint(transport.WithRejectedSlots(transport.SlotSpectrum))
	b, _ := newTestBackend(t, ep)
	require.NoError(t, b.SetSpectrumExtension(context.Background(), spectrum(true)))

	out := buf.String()
	assert.True(t, strings.Contains(out, "remote/spectrum_extension: endpoint rejected"), "log output: %q", out)
}

func TestAdvancedPayloadAccepted(t *testing.T) {
	ep := transport.NewEndpoint()
	b, rec := newTestBackend(t, ep)

	require.NoError(t, b.SetSpectrumExtension(context.Background(), spectrum(true)))
	assert.Empty(t, rec.Notices())

	payload, ok := ep.Floats(transport.SlotSpectrum)
	require.True(t, ok)
	assert.Len(t, payload, 8+dsp.HarmonicsCount)
	assert.Equal(t, float32(7600), payload[1])
	assert.Zero(t, countCalls(ep, transport.OpSetInt, transport.SlotSpectrumBark))

	c, _ := b.Capability(dsp.SpectrumExtension)
	assert.Equal(t, AdvancedSupported, c.Payload)
}

func TestRejectedFeatureShortCircuits(t *testing.T) {
	ep := transport.NewEndpoint(transport.WithRejectedSlots(transport.SlotClarity, transport.SlotClarityMode))
	b, rec := newTestBackend(t, ep)
	ctx := context.Background()
	s := dsp.ClaritySettings{Enabled: true, Mode: 1, Gain: 1}

	err := b.SetClarity(ctx, s)
	require.Error(t, err)
	assert.ErrorIs(t, err, dsp.ErrRejected)
	var re *RejectedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, int32(transport.SlotClarityMode), re.Slot)

	c, _ := b.Capability(dsp.Clarity)
	assert.Equal(t, Unsupported, c.Feature)
	assert.Equal(t, 1, rec.Count(dsp.FeatureUnsupported, dsp.Clarity))
	assert.Equal(t, 1, rec.Count(dsp.AdvancedUnsupported, dsp.Clarity))

	ep.ResetCalls()
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.SetClarity(ctx, s), dsp.ErrUnsupported)
	}
	assert.ErrorIs(t, b.SetClarity(ctx, dsp.ClaritySettings{}), dsp.ErrUnsupported)
	assert.Empty(t, ep.Calls())
	assert.Equal(t, 1, rec.Count(dsp.FeatureUnsupported, dsp.Clarity))
}

func TestTransportFailureKeepsCapability(t *testing.T) {
	ep := transport.NewEndpoint()
	rec := &dsp.NoticeRecorder{}
	stall := &stalledFloats{failures: 1, err: context.DeadlineExceeded}
	b, err := New(context.Background(), loopbackDialer(ep, func(c transport.Channel) transport.Channel {
		stall.Channel = c
		return stall
	}), WithNotifier(rec))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	ctx := context.Background()
	s := dsp.ClaritySettings{Enabled: true, Mode: 1, Gain: 1}

	err = b.SetClarity(ctx, s)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, dsp.ErrRejected)
	assert.Empty(t, rec.Notices())
	c, _ := b.Capability(dsp.Clarity)
	assert.Equal(t, Unknown, c.Feature)
	assert.Equal(t, PayloadUnknown, c.Payload)

	require.NoError(t, b.SetClarity(ctx, s))
	c, _ = b.Capability(dsp.Clarity)
	assert.Equal(t, Supported, c.Feature)
	assert.Equal(t, AdvancedSupported, c.Payload)
	assert.Empty(t, rec.Notices())
}

func TestDisableSkipsUnknownFeature(t *testing.T) {
	ep := transport.NewEndpoint()
	b, _ := newTestBackend(t, ep)
	ctx := context.Background()

	require.NoError(t, b.SetFieldSurround(ctx, dsp.FieldSurroundSettings{}))
	assert.Empty(t, ep.Calls())

	require.NoError(t, b.SetFieldSurround(ctx, dsp.FieldSurroundSettings{Enabled: true, Widening: 100, Depth: 40000}))
	payload, _ := ep.Floats(transport.SlotFieldSurround)
	require.Len(t, payload, 18)
	assert.Equal(t, float32(32767), payload[3])

	ep.ResetCalls()
	require.NoError(t, b.SetFieldSurround(ctx, dsp.FieldSurroundSettings{}))
	assert.Equal(t, []transport.Call{{Op: transport.OpSetShort, Slot: transport.SlotFieldSurroundEnable}}, ep.Calls())
}

func TestFieldSurroundLegacyUsesDirectDepth(t *testing.T) {
	ep := transport.NewEndpoint(transport.WithRejectedSlots(transport.SlotFieldSurround))
	b, _ := newTestBackend(t, ep)

	require.NoError(t, b.SetFieldSurround(context.Background(), dsp.FieldSurroundSettings{Enabled: true, Widening: 300, MidImage: 120, Depth: 499}))
	w, _ := ep.Short(transport.SlotFieldSurroundWidening)
	m, _ := ep.Short(transport.SlotFieldSurroundMidImage)
	d, _ := ep.Short(transport.SlotFieldSurroundDepth)
	assert.Equal(t, []int16{300, 120, 499}, []int16{w, m, d})
}

func TestClarityLegacyToggleSlot(t *testing.T) {
	t.Run("alternate slot", func(t *testing.T) {
		ep := transport.NewEndpoint(transport.WithRejectedSlots(transport.SlotClarity))
		b, _ := newTestBackend(t, ep)
		require.NoError(t, b.SetClarity(context.Background(), dsp.ClaritySettings{Enabled: true, Mode: 2, Gain: 1.5}))

		v, ok := ep.Short(transport.SlotClarityEnableAlt)
		assert.True(t, ok)
		assert.Equal(t, int16(1), v)
		_, ok = ep.Short(transport.SlotClarityEnable)
		assert.False(t, ok)
		gain, _ := ep.Int(transport.SlotClarityGain)
		assert.Equal(t, int32(150), gain)
	})

	t.Run("falls back to primary slot", func(t *testing.T) {
		ep := transport.NewEndpoint(transport.WithRejectedSlots(transport.SlotClarity, transport.SlotClarityEnableAlt))
		b, _ := newTestBackend(t, ep)
		require.NoError(t, b.SetClarity(context.Background(), dsp.ClaritySettings{Enabled: true}))

		v, ok := ep.Short(transport.SlotClarityEnable)
		assert.True(t, ok)
		assert.Equal(t, int16(1), v)
	})
}

func TestBufferCommit(t *testing.T) {
	ep := transport.NewEndpoint()
	b, _ := newTestBackend(t, ep)
	ctx := context.Background()
	eq := dsp.GraphicEqSettings{Enabled: true, Bands: "GraphicEQ: 25 0; 40 1"}

	require.NoError(t, b.SetGraphicEq(ctx, eq))
	assert.Equal(t, 1, countCalls(ep, transport.OpSetBuffer, transport.SlotTextBuffer))
	hash, _ := ep.Int(transport.SlotCommitGraphicEq)
	assert.Equal(t, dsp.ChecksumString(eq.Bands), hash)

	ep.ResetCalls()
	require.NoError(t, b.SetGraphicEq(ctx, eq))
	assert.Zero(t, countCalls(ep, transport.OpSetBuffer, transport.SlotTextBuffer))
	assert.Zero(t, countCalls(ep, transport.OpSetInt, transport.SlotCommitGraphicEq))
	assert.Equal(t, 1, countCalls(ep, transport.OpSetShort, transport.SlotGraphicEqEnable))

	ep.ResetCalls()
	eq.Bands = "GraphicEQ: 25 0; 40 2"
	require.NoError(t, b.SetGraphicEq(ctx, eq))
	assert.Equal(t, 1, countCalls(ep, transport.OpSetBuffer, transport.SlotTextBuffer))
	assert.Equal(t, 1, countCalls(ep, transport.OpSetInt, transport.SlotCommitGraphicEq))
	buf, _ := ep.Buffer(transport.SlotTextBuffer, transport.SubGraphicEq)
	assert.Equal(t, eq.Bands, string(buf))
}

func TestBufferResentAfterClearCache(t *testing.T) {
	ep := transport.NewEndpoint()
	b, _ := newTestBackend(t, ep)
	ctx := context.Background()
	lp := dsp.LiveProgramSettings{Enabled: true, Name: "x.eel", Script: "@sample\nspl0 = spl0;"}

	require.NoError(t, b.SetLiveProgram(ctx, lp))
	b.ClearCache()
	ep.ResetCalls()
	require.NoError(t, b.SetLiveProgram(ctx, lp))
	assert.Equal(t, 1, countCalls(ep, transport.OpSetBuffer, transport.SlotTextBuffer))
}

func TestBufferSkippedWhenDisabled(t *testing.T) {
	ep := transport.NewEndpoint()
	b, _ := newTestBackend(t, ep)

	require.NoError(t, b.SetDynamicRangeFile(context.Background(), dsp.DynamicRangeFileSettings{Filter: "SR_44100:0,0"}))
	assert.Zero(t, countCalls(ep, transport.OpSetBuffer, transport.SlotTextBuffer))
	v, _ := ep.Short(transport.SlotDdcEnable)
	assert.Zero(t, v)
}

func TestConvolverBuffer(t *testing.T) {
	ep := transport.NewEndpoint()
	b, _ := newTestBackend(t, ep)
	imp := dsp.Impulse{Samples: []float32{0.5, -0.5, 0.25, -0.25}, Channels: 2, Frames: 2}
	imp.Hash = dsp.ChecksumFloats(imp.Samples)

	require.NoError(t, b.SetConvolver(context.Background(), dsp.ConvolverSettings{Enabled: true, Impulse: imp}))

	buf, ok := ep.Buffer(transport.SlotImpulseBuffer, transport.SubConvolver)
	require.True(t, ok)
	require.Len(t, buf, 8+4*4)
	assert.Equal(t, []byte{0, 0, 0, 2, 0, 0, 0, 2}, buf[:8])
	samples, err := transport.DecodeFloats(buf[8:])
	require.NoError(t, err)
	assert.Equal(t, imp.Samples, samples)

	h, _ := ep.Int(transport.SlotCommitConvolver)
	assert.Equal(t, imp.Hash, h)
}

func viperEq() dsp.EqualizerSettings {
	s := dsp.EqualizerSettings{Enabled: true, FilterType: dsp.EqFilterViperOriginal, Interpolation: 1}
	for i := dsp.EqBandCount; i < dsp.EqFieldCount; i++ {
		s.Bands[i] = float64(i - dsp.EqBandCount)
	}
	s.Bands = normalize.SnapEqualizerBands(s.FilterType, s.Bands)
	return s
}

func TestEqualizerModeFallbackPersists(t *testing.T) {
	ep := transport.NewEndpoint()
	prefs := settings.NewMemoryStore(nil)
	rec := &dsp.NoticeRecorder{}
	filter := func(c transport.Channel) transport.Channel {
		return &floatFilter{Channel: c, reject: func(slot int32, v []float32) bool {
			return slot == transport.SlotEqualizer && v[0] == dsp.EqFilterViperOriginal
		}}
	}
	b, err := New(context.Background(), loopbackDialer(ep, filter), WithNotifier(rec), WithPreferences(prefs))
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()
	s := viperEq()

	require.NoError(t, b.SetMultiEqualizer(ctx, s))

	payload, ok := ep.Floats(transport.SlotEqualizer)
	require.True(t, ok)
	require.Len(t, payload, 2+dsp.EqFieldCount)
	assert.Equal(t, float32(dsp.EqFilterFIRMinimum), payload[0])
	assert.Equal(t, float32(1), payload[1])
	assert.Equal(t, float32(normalize.StandardScale[0]), payload[2])
	assert.Equal(t, float32(14), payload[len(payload)-1])

	fallback := normalize.SnapEqualizerBands(dsp.EqFilterFIRMinimum, s.Bands)
	sec := prefs.Select(dsp.Equalizer)
	assert.Equal(t, "0", sec.String(settings.KeyEqFilterType, ""))
	assert.Equal(t, normalize.FormatList(fallback[:]), sec.String(settings.KeyEqBands, ""))

	// Mode 6 is no longer attempted on this connection.
	ep.ResetCalls()
	require.NoError(t, b.SetMultiEqualizer(ctx, s))
	assert.Equal(t, 1, countCalls(ep, transport.OpSetFloats, transport.SlotEqualizer))

	require.NoError(t, b.Reboot(ctx))
	assert.Equal(t, Unknown, b.caps.eqViperOriginal)
}

func TestEqualizerInterpolationAndEnable(t *testing.T) {
	ep := transport.NewEndpoint()
	b, _ := newTestBackend(t, ep)
	s := dsp.EqualizerSettings{Enabled: true, FilterType: 2}
	s.Bands = normalize.SnapEqualizerBands(2, s.Bands)

	require.NoError(t, b.SetMultiEqualizer(context.Background(), s))
	payload, _ := ep.Floats(transport.SlotEqualizer)
	assert.Equal(t, []float32{2, -1}, payload[:2])
	on, _ := ep.Short(transport.SlotEqualizerEnable)
	assert.Equal(t, int16(1), on)
}

func TestSimpleFeatures(t *testing.T) {
	ep := transport.NewEndpoint()
	b, _ := newTestBackend(t, ep)
	ctx := context.Background()

	require.NoError(t, b.SetOutputControl(ctx, dsp.OutputControl{LimiterThreshold: -0.1, LimiterRelease: 60, PostGain: 3}))
	require.NoError(t, b.SetBassBoost(ctx, dsp.BassSettings{Enabled: true, MaxGain: 5.5}))
	require.NoError(t, b.SetTube(ctx, dsp.TubeSettings{Enabled: true, Drive: 2.5}))
	require.NoError(t, b.SetStereoWidener(ctx, dsp.StereoWidenerSettings{Enabled: true, Level: 60.4}))
	require.NoError(t, b.SetReverb(ctx, dsp.ReverbSettings{Preset: 7}))
	require.NoError(t, b.SetCrossfeed(ctx, dsp.CrossfeedSettings{Enabled: true, Mode: 3}))
	require.NoError(t, b.SetCompander(ctx, dsp.CompanderSettings{Enabled: true, TimeConstant: 0.22, Granularity: 2, TfTransforms: 0}))

	out, _ := ep.Floats(transport.SlotOutputControl)
	assert.Equal(t, []float32{-0.1, 60, 3}, out)

	shorts := map[int32]int16{
		transport.SlotBassMaxGain:         6,
		transport.SlotBassEnable:          1,
		transport.SlotTubeDrive:           2500,
		transport.SlotStereoWidenerLevel:  60,
		transport.SlotReverbEnable:        0,
		transport.SlotCrossfeedMode:       3,
		transport.SlotCrossfeedEnable:     1,
		transport.SlotCompanderEnable:     1,
		transport.SlotStereoWidenerEnable: 1,
	}
	for slot, want := range shorts {
		got, ok := ep.Short(slot)
		assert.True(t, ok, "slot %d not written", slot)
		assert.Equal(t, want, got, "slot %d", slot)
	}
	_, ok := ep.Short(transport.SlotReverbPreset)
	assert.False(t, ok, "preset written while disabled")

	comp, _ := ep.Floats(transport.SlotCompander)
	assert.Len(t, comp, 3+dsp.CompanderFieldCount)
}

func TestCustomCrossfeedUnsupported(t *testing.T) {
	ep := transport.NewEndpoint()
	b, _ := newTestBackend(t, ep)

	err := b.SetCrossfeed(context.Background(), dsp.CrossfeedSettings{Enabled: true, Mode: dsp.CrossfeedCustomMode, CutoffHz: 700, FeedDb: 45})
	assert.ErrorIs(t, err, dsp.ErrUnsupported)
	assert.Empty(t, ep.Calls())
	assert.False(t, b.Capabilities().CustomCrossfeed)
}

func TestReadyRebootsDeadEngine(t *testing.T) {
	ep := transport.NewEndpoint(transport.WithRejectedSlots(transport.SlotSpectrum))
	b, rec := newTestBackend(t, ep)
	ctx := context.Background()

	rebooted, err := b.Ready(ctx)
	require.NoError(t, err)
	assert.False(t, rebooted)

	require.NoError(t, b.SetSpectrumExtension(ctx, spectrum(true)))
	c, _ := b.Capability(dsp.SpectrumExtension)
	require.Equal(t, LegacyOnly, c.Payload)

	ep.Kill()
	rebooted, err = b.Ready(ctx)
	require.NoError(t, err)
	assert.True(t, rebooted)
	assert.Equal(t, 1, rec.Count(dsp.EngineRebooted, dsp.Output))

	c, _ = b.Capability(dsp.SpectrumExtension)
	assert.Equal(t, Capability{}, c)

	// The advanced notice may be shown again on the new connection.
	require.NoError(t, b.SetSpectrumExtension(ctx, spectrum(true)))
	assert.Equal(t, 2, rec.Count(dsp.AdvancedUnsupported, dsp.SpectrumExtension))

	st, err := b.Status(ctx)
	require.NoError(t, err)
	assert.Positive(t, st.PID)
	assert.True(t, st.PresetInitialized())
}

func TestReadyRebootsOnAbnormalSampleRate(t *testing.T) {
	ep := transport.NewEndpoint(transport.WithSampleRate(0))
	b, _ := newTestBackend(t, ep)

	rebooted, err := b.Ready(context.Background())
	require.NoError(t, err)
	assert.True(t, rebooted)
	assert.Zero(t, b.SampleRate(context.Background()))
}

func TestRebootFailureLeavesBackendDisconnected(t *testing.T) {
	ep := transport.NewEndpoint()
	fail := false
	dial := loopbackDialer(ep, nil)
	b, err := New(context.Background(), func(ctx context.Context) (transport.Channel, error) {
		if fail {
			return nil, errors.New("no route to engine")
		}
		return dial(ctx)
	})
	require.NoError(t, err)
	ctx := context.Background()

	fail = true
	require.Error(t, b.Reboot(ctx))
	assert.ErrorIs(t, b.SetTube(ctx, dsp.TubeSettings{}), errNotConnected)

	fail = false
	rebooted, err := b.Ready(ctx)
	require.NoError(t, err)
	assert.True(t, rebooted)
	assert.NoError(t, b.SetTube(ctx, dsp.TubeSettings{}))
}

func TestEngineStatus(t *testing.T) {
	ep := transport.NewEndpoint(transport.WithSampleRate(44100))
	b, _ := newTestBackend(t, ep)
	ctx := context.Background()

	require.NoError(t, b.SetGraphicEq(ctx, dsp.GraphicEqSettings{Enabled: true, Bands: "GraphicEQ: 100 1"}))
	st, err := b.EngineStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(44100), st.SampleRate)
	require.Len(t, st.Hashes, 4)
	assert.Equal(t, dsp.ChecksumString("GraphicEQ: 100 1"), st.Hashes[0])
	assert.Equal(t, transport.NoHash, st.Hashes[3])
	assert.Equal(t, float32(44100), b.SampleRate(ctx))
}

func TestClosedBackend(t *testing.T) {
	ep := transport.NewEndpoint()
	b, _ := newTestBackend(t, ep)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	ctx := context.Background()
	assert.ErrorIs(t, b.SetBassBoost(ctx, dsp.BassSettings{}), dsp.ErrEngineClosed)
	_, err := b.Ready(ctx)
	assert.ErrorIs(t, err, dsp.ErrEngineClosed)
	assert.ErrorIs(t, b.Reboot(ctx), dsp.ErrEngineClosed)
}
