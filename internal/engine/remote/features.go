// SPDX-License-Identifier: MIT
package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"dspctl/internal/dsp"
	"dspctl/internal/normalize"
	"dspctl/internal/settings"
	"dspctl/internal/transport"

	"gonum.org/v1/gonum/floats/scalar"
)

func boolShort(v bool) int16 {
	if v {
		return 1
	}
	return 0
}

func boolFloat(v bool) float32 {
	if v {
		return 1
	}
	return 0
}

// roundInt rounds half away from zero, as the legacy integer slots expect.
func roundInt(v float64) int32 {
	return int32(scalar.Round(v, 0))
}

func toFloats(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// toggled writes param only when enabling, then always the enable slot.
func toggled(ctx context.Context, ch transport.Channel, ns dsp.Namespace, enable bool, enableSlot int32, param func() error) error {
	var err error
	if enable {
		err = param()
	}
	return reject(ns, errors.Join(err, ch.SetShort(ctx, enableSlot, boolShort(enable))))
}

func (b *Backend) SetOutputControl(ctx context.Context, s dsp.OutputControl) error {
	return b.do(func(ch transport.Channel) error {
		return reject(dsp.Output, ch.SetFloats(ctx, transport.SlotOutputControl,
			[]float32{s.LimiterThreshold, s.LimiterRelease, s.PostGain}))
	})
}

func (b *Backend) SetCompander(ctx context.Context, s dsp.CompanderSettings) error {
	return b.do(func(ch transport.Channel) error {
		payload := append([]float32{s.TimeConstant, float32(s.Granularity), float32(s.TfTransforms)}, toFloats(s.Response[:])...)
		err := ch.SetFloats(ctx, transport.SlotCompander, payload)
		return reject(dsp.Compander, errors.Join(err, ch.SetShort(ctx, transport.SlotCompanderEnable, boolShort(s.Enabled))))
	})
}

func (b *Backend) SetBassBoost(ctx context.Context, s dsp.BassSettings) error {
	return b.do(func(ch transport.Channel) error {
		return toggled(ctx, ch, dsp.Bass, s.Enabled, transport.SlotBassEnable, func() error {
			return ch.SetShort(ctx, transport.SlotBassMaxGain, int16(roundInt(float64(s.MaxGain))))
		})
	})
}

func (b *Backend) SetReverb(ctx context.Context, s dsp.ReverbSettings) error {
	return b.do(func(ch transport.Channel) error {
		return toggled(ctx, ch, dsp.Reverb, s.Enabled, transport.SlotReverbEnable, func() error {
			return ch.SetShort(ctx, transport.SlotReverbPreset, int16(s.Preset))
		})
	})
}

func (b *Backend) SetStereoWidener(ctx context.Context, s dsp.StereoWidenerSettings) error {
	return b.do(func(ch transport.Channel) error {
		return toggled(ctx, ch, dsp.StereoWidener, s.Enabled, transport.SlotStereoWidenerEnable, func() error {
			return ch.SetShort(ctx, transport.SlotStereoWidenerLevel, int16(roundInt(float64(s.Level))))
		})
	})
}

// SetCrossfeed rejects the custom mode, which the slot protocol cannot carry.
func (b *Backend) SetCrossfeed(ctx context.Context, s dsp.CrossfeedSettings) error {
	if s.Custom() {
		return fmt.Errorf("%s custom mode: %w", dsp.Crossfeed, dsp.ErrUnsupported)
	}
	return b.do(func(ch transport.Channel) error {
		return toggled(ctx, ch, dsp.Crossfeed, s.Enabled, transport.SlotCrossfeedEnable, func() error {
			return ch.SetShort(ctx, transport.SlotCrossfeedMode, int16(s.Mode))
		})
	})
}

func (b *Backend) SetTube(ctx context.Context, s dsp.TubeSettings) error {
	return b.do(func(ch transport.Channel) error {
		return toggled(ctx, ch, dsp.Tube, s.Enabled, transport.SlotTubeEnable, func() error {
			return ch.SetShort(ctx, transport.SlotTubeDrive, int16(roundInt(float64(s.Drive)*1000)))
		})
	})
}

// SetMultiEqualizer falls back from filter mode 6 to mode 0 when the
// endpoint rejects it, and persists the fallback so later passes stop
// asking for mode 6.
func (b *Backend) SetMultiEqualizer(ctx context.Context, s dsp.EqualizerSettings) error {
	return b.do(func(ch transport.Channel) error {
		var err error
		if s.Enabled {
			err = b.applyEqualizer(ctx, ch, s)
		}
		return errors.Join(err, reject(dsp.Equalizer, ch.SetShort(ctx, transport.SlotEqualizerEnable, boolShort(s.Enabled))))
	})
}

func (b *Backend) applyEqualizer(ctx context.Context, ch transport.Channel, s dsp.EqualizerSettings) error {
	send := func(mode int, bands [dsp.EqFieldCount]float64) error {
		interp := float32(-1)
		if s.Interpolation == 1 {
			interp = 1
		}
		payload := append([]float32{float32(mode), interp}, toFloats(bands[:])...)
		return ch.SetFloats(ctx, transport.SlotEqualizer, payload)
	}
	fallback := normalize.SnapEqualizerBands(dsp.EqFilterFIRMinimum, s.Bands)

	if s.FilterType != dsp.EqFilterViperOriginal {
		return reject(dsp.Equalizer, send(s.FilterType, s.Bands))
	}
	if b.caps.eqViperOriginal == Unsupported {
		if err := send(dsp.EqFilterFIRMinimum, fallback); err != nil {
			return reject(dsp.Equalizer, err)
		}
		b.persistEqFallback(fallback)
		return nil
	}

	if err := send(dsp.EqFilterViperOriginal, s.Bands); err == nil {
		b.caps.eqViperOriginal = Supported
		return nil
	}
	b.log.Warnf("endpoint rejected equalizer filter mode %d, falling back to mode %d", dsp.EqFilterViperOriginal, dsp.EqFilterFIRMinimum)
	if err := send(dsp.EqFilterFIRMinimum, fallback); err != nil {
		return reject(dsp.Equalizer, err)
	}
	b.caps.eqViperOriginal = Unsupported
	b.persistEqFallback(fallback)
	return nil
}

// persistEqFallback stores mode 0 and the rescaled bands unless they are
// already stored.
func (b *Backend) persistEqFallback(bands [dsp.EqFieldCount]float64) {
	if b.prefs == nil {
		return
	}
	mode := strconv.Itoa(dsp.EqFilterFIRMinimum)
	serialized := normalize.FormatList(bands[:])

	sec := b.prefs.Select(dsp.Equalizer)
	if sec.String(settings.KeyEqFilterType, mode) == mode && sec.String(settings.KeyEqBands, "") == serialized {
		return
	}
	err := b.prefs.Put(dsp.Equalizer, map[string]any{
		settings.KeyEqFilterType: mode,
		settings.KeyEqBands:      serialized,
	})
	if err != nil {
		b.log.Errorf("failed to persist equalizer fallback: %v", err)
		return
	}
	b.log.Infof("persisted equalizer fallback mode %s for endpoint compatibility", mode)
}

func (b *Backend) SetSpectrumExtension(ctx context.Context, s dsp.SpectrumExtensionSettings) error {
	return b.do(func(ch transport.Channel) error {
		payload := append([]float32{
			s.StrengthLinear,
			float32(s.ReferenceFreq),
			s.WetMix,
			s.PostGainDb,
			boolFloat(s.Safety),
			s.HighPassQ,
			s.LowPassQ,
			float32(s.LowPassOffsetHz),
		}, toFloats(s.Harmonics[:])...)

		return b.negotiate(ctx, advancedWrite{
			ns:     dsp.SpectrumExtension,
			cap:    &b.caps.spectrum,
			enable: s.Enabled,
			label:  "Spectrum Extension",
			payload: func(ctx context.Context) error {
				return ch.SetFloats(ctx, transport.SlotSpectrum, payload)
			},
			legacy: []func(ctx context.Context) error{
				func(ctx context.Context) error {
					return ch.SetInt(ctx, transport.SlotSpectrumBark, int32(s.ReferenceFreq))
				},
				func(ctx context.Context) error {
					return ch.SetInt(ctx, transport.SlotSpectrumBarkRecon, roundInt(float64(s.StrengthLinear)*100))
				},
			},
			toggle: func(ctx context.Context, on bool) error {
				return ch.SetInt(ctx, transport.SlotSpectrumEnable, int32(boolShort(on)))
			},
		})
	})
}

func (b *Backend) SetClarity(ctx context.Context, s dsp.ClaritySettings) error {
	return b.do(func(ch transport.Channel) error {
		payload := []float32{
			float32(s.Mode),
			s.Gain,
			s.PostGainDb,
			boolFloat(s.Safety),
			s.SafetyThresholdDb,
			s.SafetyReleaseMs,
			float32(s.NaturalLpfOffsetHz),
			float32(s.OzoneFreqHz),
			float32(s.XhifiLowCutHz),
			float32(s.XhifiHighCutHz),
			s.XhifiHpMix,
			s.XhifiBpMix,
			float32(s.XhifiBpDelayDivisor),
			float32(s.XhifiLpDelayDivisor),
		}

		return b.negotiate(ctx, advancedWrite{
			ns:     dsp.Clarity,
			cap:    &b.caps.clarity,
			enable: s.Enabled,
			label:  "Clarity",
			payload: func(ctx context.Context) error {
				return ch.SetFloats(ctx, transport.SlotClarity, payload)
			},
			legacy: []func(ctx context.Context) error{
				func(ctx context.Context) error {
					return ch.SetShort(ctx, transport.SlotClarityMode, int16(s.Mode))
				},
				func(ctx context.Context) error {
					return ch.SetInt(ctx, transport.SlotClarityGain, roundInt(float64(s.Gain)*100))
				},
			},
			toggle: func(ctx context.Context, on bool) error {
				// Legacy-only endpoints may expose the toggle on the
				// alternate slot.
				if b.caps.clarity.Payload == LegacyOnly {
					if err := ch.SetShort(ctx, transport.SlotClarityEnableAlt, boolShort(on)); err == nil {
						return nil
					}
				}
				return ch.SetShort(ctx, transport.SlotClarityEnable, boolShort(on))
			},
		})
	})
}

// SetFieldSurround sends depth through the direct depth path.
func (b *Backend) SetFieldSurround(ctx context.Context, s dsp.FieldSurroundSettings) error {
	depth := normalize.ToDirectDepthStrength(s.Depth)
	return b.do(func(ch transport.Channel) error {
		payload := []float32{
			float32(s.OutputMode),
			float32(s.Widening),
			float32(s.MidImage),
			float32(depth),
			float32(s.PhaseOffset),
			float32(s.MonoSumMix),
			float32(s.MonoSumPan),
			s.DelayLeftMs,
			s.DelayRightMs,
			s.HpfFrequencyHz,
			s.HpfGainDb,
			s.HpfQ,
			float32(s.BranchThreshold),
			s.GainScaleDb,
			s.GainOffsetDb,
			s.GainCap,
			s.StereoFloor,
			s.StereoFallback,
		}

		return b.negotiate(ctx, advancedWrite{
			ns:     dsp.FieldSurround,
			cap:    &b.caps.fieldSurround,
			enable: s.Enabled,
			label:  "Field Surround",
			payload: func(ctx context.Context) error {
				return ch.SetFloats(ctx, transport.SlotFieldSurround, payload)
			},
			legacy: []func(ctx context.Context) error{
				func(ctx context.Context) error {
					return ch.SetShort(ctx, transport.SlotFieldSurroundWidening, int16(s.Widening))
				},
				func(ctx context.Context) error {
					return ch.SetShort(ctx, transport.SlotFieldSurroundMidImage, int16(s.MidImage))
				},
				func(ctx context.Context) error {
					return ch.SetShort(ctx, transport.SlotFieldSurroundDepth, int16(depth))
				},
			},
			toggle: func(ctx context.Context, on bool) error {
				return ch.SetShort(ctx, transport.SlotFieldSurroundEnable, boolShort(on))
			},
		})
	})
}
