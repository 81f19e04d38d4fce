package sumi

import (
	"github.com/go-gl/mathgl/mgl32"
)

// DotType classifies a particle within a splat. The central dot sits at the
// impact point; satellite classes shrink in radius and grow in count from
// large down to micro.
type DotType uint8

const (
	DotCentral DotType = iota
	DotLarge
	DotMedium
	DotSmall
	DotMicro

	DotTypeCount = 5
)

var dotTypeNames = [DotTypeCount]string{"central", "large", "medium", "small", "micro"}

func (t DotType) String() string {
	if int(t) < len(dotTypeNames) {
		return dotTypeNames[t]
	}
	return "unknown"
}

// Valid reports whether t is one of the five known classes.
func (t DotType) Valid() bool { return t < DotTypeCount }

// Bit returns the visibility-mask bit for this type. Each type maps to
// exactly one bit; the shader tests the same bit positions.
func (t DotType) Bit() uint32 { return 1 << uint32(t) }

// ParseDotType resolves a settings-file type name. The bool is false for
// unknown names.
func ParseDotType(name string) (DotType, bool) {
	for i, n := range dotTypeNames {
		if n == name {
			return DotType(i), true
		}
	}
	return 0, false
}

// VisibilityMask is a bitmask over DotType bits.
type VisibilityMask uint32

// AllDotsVisible has every type bit set.
const AllDotsVisible VisibilityMask = 1<<DotTypeCount - 1

func (m VisibilityMask) Has(t DotType) bool { return uint32(m)&t.Bit() != 0 }

func (m VisibilityMask) With(t DotType) VisibilityMask { return m | VisibilityMask(t.Bit()) }

func (m VisibilityMask) Without(t DotType) VisibilityMask {
	return m &^ VisibilityMask(t.Bit())
}

// Particle is one generated dot of a splat. Position lives in the unit
// square (screen-normalized), radius is normalized to screen width.
// Particles are immutable after generation; a new impact only appends.
type Particle struct {
	Pos        mgl32.Vec2
	Radius     float32
	Type       DotType
	Vel        mgl32.Vec2
	Elongation float32
}
