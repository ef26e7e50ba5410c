// SPDX-License-Identifier: MIT
package syncer

import (
	"context"

	"dspctl/internal/dsp"
	"dspctl/internal/normalize"
	"dspctl/internal/settings"
)

// normalized holds the in-memory namespaces of one pass. File-backed
// namespaces are loaded only when they are written.
type normalized struct {
	output        dsp.OutputControl
	compander     dsp.CompanderSettings
	companderErr  error
	bass          dsp.BassSettings
	eq            dsp.EqualizerSettings
	eqErr         error
	graphicEq     dsp.GraphicEqSettings
	graphicEqErr  error
	reverb        dsp.ReverbSettings
	spectrum      dsp.SpectrumExtensionSettings
	spectrumErr   error
	clarity       dsp.ClaritySettings
	fieldSurround dsp.FieldSurroundSettings
	widener       dsp.StereoWidenerSettings
	crossfeed     dsp.CrossfeedSettings
	tube          dsp.TubeSettings
}

func (d *Driver) normalize(snap settings.Snapshot) normalized {
	var n normalized
	n.output = normalize.Output(snap.Output)
	n.compander, n.companderErr = normalize.Compander(snap.Compander)
	n.bass = normalize.Bass(snap.Bass)
	n.eq, n.eqErr = normalize.Equalizer(snap.Equalizer)
	n.graphicEq, n.graphicEqErr = normalize.GraphicEq(snap.GraphicEq)
	n.reverb = normalize.Reverb(snap.Reverb)
	n.spectrum, n.spectrumErr = normalize.SpectrumExtension(snap.SpectrumExtension)
	n.clarity = normalize.Clarity(snap.Clarity)
	n.fieldSurround = normalize.FieldSurround(snap.FieldSurround)
	n.widener = normalize.StereoWidener(snap.StereoWidener)
	n.crossfeed = normalize.Crossfeed(snap.Crossfeed)
	n.tube = normalize.Tube(snap.Tube)
	return n
}

// write commits one namespace.
func (d *Driver) write(ctx context.Context, ns dsp.Namespace, snap settings.Snapshot, n normalized, rate int) error {
	e := d.engine
	switch ns {
	case dsp.Output:
		return e.SetOutputControl(ctx, n.output)
	case dsp.Compander:
		return dispatch(ctx, d, n.compander, n.companderErr, e.SetCompander)
	case dsp.Bass:
		return e.SetBassBoost(ctx, n.bass)
	case dsp.Equalizer:
		return dispatch(ctx, d, n.eq, n.eqErr, e.SetMultiEqualizer)
	case dsp.GraphicEqualizer:
		return dispatch(ctx, d, n.graphicEq, n.graphicEqErr, e.SetGraphicEq)
	case dsp.Reverb:
		return e.SetReverb(ctx, n.reverb)
	case dsp.SpectrumExtension:
		return dispatch(ctx, d, n.spectrum, n.spectrumErr, e.SetSpectrumExtension)
	case dsp.Clarity:
		return e.SetClarity(ctx, n.clarity)
	case dsp.FieldSurround:
		return e.SetFieldSurround(ctx, n.fieldSurround)
	case dsp.StereoWidener:
		return e.SetStereoWidener(ctx, n.widener)
	case dsp.Crossfeed:
		return e.SetCrossfeed(ctx, n.crossfeed)
	case dsp.Tube:
		return e.SetTube(ctx, n.tube)
	case dsp.DynamicRangeFile:
		s, err := normalize.DynamicRangeFile(snap.DynamicRangeFile, d.files)
		return dispatch(ctx, d, s, err, e.SetDynamicRangeFile)
	case dsp.LiveProgram:
		s, err := normalize.LiveProgram(snap.LiveProgram, d.files)
		return dispatch(ctx, d, s, err, e.SetLiveProgram)
	case dsp.Convolver:
		s, err := normalize.Convolver(snap.Convolver, d.files, rate)
		if err == nil && !s.AdvParamsValid {
			d.notify(dsp.ConvolverAdvParamsInvalid, dsp.Convolver, "malformed advanced parameters, using defaults")
		}
		return dispatch(ctx, d, s, err, e.SetConvolver)
	}
	return dsp.Invalid(ns, "unknown namespace")
}
