// SPDX-License-Identifier: MIT
/*
Package dsp defines the vocabulary shared by every part of the control layer:
the preference namespaces, the normalized settings struct for each of them and
the Adapter contract both engine backends implement.

Normalized structs are plain values. A struct produced by package normalize
has every numeric field inside its documented interval; backends may rely on
that and never re-clamp.
*/
package dsp

import "fmt"

// Namespace identifies a group of settings that are committed together.
type Namespace uint8

const (
	Output Namespace = iota
	Compander
	Bass
	Equalizer
	GraphicEqualizer
	Reverb
	SpectrumExtension
	Clarity
	FieldSurround
	StereoWidener
	Crossfeed
	Tube
	DynamicRangeFile
	LiveProgram
	Convolver

	namespaceCount
)

var namespaceIDs = [namespaceCount]string{
	Output:            "output",
	Compander:         "compander",
	Bass:              "bass",
	Equalizer:         "equalizer",
	GraphicEqualizer:  "graphic_eq",
	Reverb:            "reverb",
	SpectrumExtension: "spectrum_extension",
	Clarity:           "clarity",
	FieldSurround:     "field_surround",
	StereoWidener:     "stereo_widener",
	Crossfeed:         "crossfeed",
	Tube:              "tube",
	DynamicRangeFile:  "ddc",
	LiveProgram:       "liveprog",
	Convolver:         "convolver",
}

// String returns the stable identifier used as the settings section name.
func (n Namespace) String() string {
	if n < namespaceCount {
		return namespaceIDs[n]
	}
	return fmt.Sprintf("namespace(%d)", uint8(n))
}

// Valid reports whether n is one of the declared namespaces.
func (n Namespace) Valid() bool {
	return n < namespaceCount
}

// AllNamespaces returns every namespace in commit order.
func AllNamespaces() []Namespace {
	all := make([]Namespace, 0, namespaceCount)
	for n := Namespace(0); n < namespaceCount; n++ {
		all = append(all, n)
	}
	return all
}

// ParseNamespace resolves a section identifier such as "clarity".
func ParseNamespace(id string) (Namespace, error) {
	for n, s := range namespaceIDs {
		if s == id {
			return Namespace(n), nil
		}
	}
	return 0, fmt.Errorf("unknown namespace %q", id)
}

// NamespaceSet is a small bitset of namespaces.
type NamespaceSet uint32

// SetOf builds a set from the given namespaces.
func SetOf(ns ...Namespace) NamespaceSet {
	var s NamespaceSet
	for _, n := range ns {
		s = s.With(n)
	}
	return s
}

// FullSet contains every namespace.
func FullSet() NamespaceSet {
	return NamespaceSet(1<<namespaceCount - 1)
}

func (s NamespaceSet) With(n Namespace) NamespaceSet { return s | 1<<n }

func (s NamespaceSet) Has(n Namespace) bool { return s&(1<<n) != 0 }

func (s NamespaceSet) Union(o NamespaceSet) NamespaceSet { return s | o }

func (s NamespaceSet) Empty() bool { return s == 0 }

// Slice returns the members in commit order.
func (s NamespaceSet) Slice() []Namespace {
	var out []Namespace
	for n := Namespace(0); n < namespaceCount; n++ {
		if s.Has(n) {
			out = append(out, n)
		}
	}
	return out
}
