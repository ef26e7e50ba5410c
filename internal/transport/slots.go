// SPDX-License-Identifier: MIT
package transport

import "github.com/google/uuid"

// Effect type identifiers sent in the handshake.
var (
	EffectTypeCustom = uuid.MustParse("f98765f4-c321-5de6-9a45-123459495ab2")
	EffectEngine     = uuid.MustParse("f27317f4-c984-4de6-9a90-545759495bf2")
)

// Parameter slots.
const (
	SlotOutputControl = 1500

	SlotCompander       = 115
	SlotCompanderEnable = 1200

	SlotBassMaxGain = 112
	SlotBassEnable  = 1201

	SlotEqualizer       = 116
	SlotEqualizerEnable = 1202

	SlotReverbPreset = 128
	SlotReverbEnable = 1203

	SlotStereoWidenerLevel  = 137
	SlotStereoWidenerEnable = 1204

	SlotConvolverEnable = 1205
	SlotTubeDrive       = 150
	SlotTubeEnable      = 1206

	SlotCrossfeedMode   = 188
	SlotCrossfeedEnable = 1208

	SlotClarity           = 118
	SlotClarityEnable     = 1209
	SlotClarityEnableAlt  = 65578
	SlotClarityMode       = 65579
	SlotClarityGain       = 65580
	SlotGraphicEqEnable   = 1210
	SlotDdcEnable         = 1212
	SlotLiveprogEnable    = 1213
	SlotSpectrum          = 117
	SlotSpectrumEnable    = 65548
	SlotSpectrumBark      = 65549
	SlotSpectrumBarkRecon = 65550

	SlotFieldSurround         = 119
	SlotFieldSurroundEnable   = 65553
	SlotFieldSurroundWidening = 65554
	SlotFieldSurroundMidImage = 65555
	SlotFieldSurroundDepth    = 65556
)

// Buffer slots. Text buffers go to SlotTextBuffer, impulse responses to
// SlotImpulseBuffer; the sub slot names the feature.
const (
	SlotImpulseBuffer = 12000
	SlotTextBuffer    = 12001

	SubConvolver = 10004
	SubGraphicEq = 10006
	SubDdc       = 10009
	SubLiveprog  = 10010
)

// Commit hash slots. Writing a commit slot stores the hash, which is then
// readable through the matching readback slot.
const (
	SlotCommitGraphicEq = 25000
	SlotCommitDdc       = 25001
	SlotCommitLiveprog  = 25002
	SlotCommitConvolver = 25003

	SlotHashGraphicEq = 30000
	SlotHashDdc       = 30001
	SlotHashLiveprog  = 30002
	SlotHashConvolver = 30003

	commitToReadback = SlotHashGraphicEq - SlotCommitGraphicEq
)

// Status slots, read only.
const (
	SlotCommitCount    = 19998
	SlotBufferLength   = 19999
	SlotAllocatedBlock = 20000
	SlotSampleRate     = 20001
	SlotPID            = 20002
)

// NoHash is reported by readback slots before anything was committed.
const NoHash int32 = -1
