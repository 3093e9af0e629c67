// Package geometry defines the in-memory mesh model: meshes, levels of detail,
// LOD groups, import settings and the geometry asset that owns them.
package geometry

import (
	"fmt"
	"strings"
)

// ElementsType is a bitmask describing the per-vertex attribute block.
type ElementsType uint32

const (
	ElementsPositionOnly ElementsType = 0x00
	ElementsNormals      ElementsType = 0x01
	ElementsTSpace       ElementsType = 0x03 // implies ElementsNormals
	ElementsJoints       ElementsType = 0x04
	ElementsColors       ElementsType = 0x08
)

// Has reports whether every bit of flag is set.
func (e ElementsType) Has(flag ElementsType) bool {
	return e&flag == flag
}

// String returns the set flags joined with "|".
func (e ElementsType) String() string {
	if e == ElementsPositionOnly {
		return "PositionOnly"
	}
	var (
		parts   []string
		printed ElementsType
	)
	switch {
	case e.Has(ElementsTSpace):
		parts = append(parts, "TSpace")
		printed |= ElementsTSpace
	case e.Has(ElementsNormals):
		parts = append(parts, "Normals")
		printed |= ElementsNormals
	}
	if e.Has(ElementsJoints) {
		parts = append(parts, "Joints")
		printed |= ElementsJoints
	}
	if e.Has(ElementsColors) {
		parts = append(parts, "Colors")
		printed |= ElementsColors
	}
	if rest := e &^ printed; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// PrimitiveTopology is the primitive assembly mode of a mesh.
type PrimitiveTopology uint32

const (
	TopologyPointList PrimitiveTopology = iota + 1
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
)

// String returns a human-readable topology name.
func (p PrimitiveTopology) String() string {
	switch p {
	case TopologyPointList:
		return "PointList"
	case TopologyLineList:
		return "LineList"
	case TopologyLineStrip:
		return "LineStrip"
	case TopologyTriangleList:
		return "TriangleList"
	case TopologyTriangleStrip:
		return "TriangleStrip"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(p))
	}
}

// AssetType tags the kind of content stored in an asset file.
type AssetType int32

const (
	AssetUnknown AssetType = iota
	AssetAnimation
	AssetAudio
	AssetMaterial
	AssetMesh
	AssetSkeleton
	AssetTexture
)

// String returns the asset type name.
func (t AssetType) String() string {
	switch t {
	case AssetUnknown:
		return "Unknown"
	case AssetAnimation:
		return "Animation"
	case AssetAudio:
		return "Audio"
	case AssetMaterial:
		return "Material"
	case AssetMesh:
		return "Mesh"
	case AssetSkeleton:
		return "Skeleton"
	case AssetTexture:
		return "Texture"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(t))
	}
}

// AssetFileExtension is the extension shared by all asset files.
const AssetFileExtension = ".asset"
