// SPDX-License-Identifier: MIT
package dsp

import "context"

// Adapter is the per-namespace write contract. Each operation receives an
// already normalized struct and returns nil once the engine accepted it.
// Implementations never panic on transport failure; rejections come back as
// errors matching ErrRejected or ErrUnsupported.
type Adapter interface {
	SetOutputControl(ctx context.Context, s OutputControl) error
	SetCompander(ctx context.Context, s CompanderSettings) error
	SetBassBoost(ctx context.Context, s BassSettings) error
	SetMultiEqualizer(ctx context.Context, s EqualizerSettings) error
	SetGraphicEq(ctx context.Context, s GraphicEqSettings) error
	SetReverb(ctx context.Context, s ReverbSettings) error
	SetSpectrumExtension(ctx context.Context, s SpectrumExtensionSettings) error
	SetClarity(ctx context.Context, s ClaritySettings) error
	SetFieldSurround(ctx context.Context, s FieldSurroundSettings) error
	SetStereoWidener(ctx context.Context, s StereoWidenerSettings) error
	SetCrossfeed(ctx context.Context, s CrossfeedSettings) error
	SetTube(ctx context.Context, s TubeSettings) error
	SetDynamicRangeFile(ctx context.Context, s DynamicRangeFileSettings) error
	SetLiveProgram(ctx context.Context, s LiveProgramSettings) error
	SetConvolver(ctx context.Context, s ConvolverSettings) error
}

// Capabilities describes optional features of a backend.
type Capabilities struct {
	ScriptVM        bool // variables of the running script can be read and written
	CustomCrossfeed bool // CrossfeedCustomMode is accepted
}

// Engine is an Adapter with a lifecycle. The synchronization driver only
// depends on this interface.
type Engine interface {
	Adapter

	// Ready is called before every sync pass. It may reconnect a broken
	// transport, in which case rebooted is true and every namespace must be
	// written again. An error aborts the pass.
	Ready(ctx context.Context) (rebooted bool, err error)

	// Reboot tears down and re-establishes the transport. All negotiated
	// capability state is forgotten.
	Reboot(ctx context.Context) error

	// ClearCache forgets commit hashes so buffers are retransmitted.
	ClearCache()

	// SampleRate reports the engine's current sample rate in Hz, 0 if unknown.
	SampleRate(ctx context.Context) float32

	Capabilities() Capabilities

	Close() error
}

// Variable is a script VM variable exposed by the engine.
type Variable struct {
	Name  string
	Value float32
}

// ScriptVM is implemented by engines with Capabilities().ScriptVM set.
type ScriptVM interface {
	Variables() ([]Variable, error)
	SetVariable(name string, value float32) error
	FreezeScript(freeze bool) error
}
