package geometry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// PositionStride is the byte size of one vertex position (3 x float32).
const PositionStride = 12

// Validation errors.
var (
	ErrPositionsSize    = errors.New("positions buffer does not match vertex count")
	ErrElementsSize     = errors.New("elements buffer does not match element size and vertex count")
	ErrIndicesSize      = errors.New("indices buffer does not match index size and count")
	ErrInvalidIndexSize = errors.New("index size must be 2 or 4")
	ErrEmptyLOD         = errors.New("mesh LOD has no submeshes")
	ErrEmptyLODGroup    = errors.New("LOD group has no levels of detail")
)

// Mesh is one drawable primitive at one detail level.
type Mesh struct {
	Name         string
	VertexCount  uint32
	ElementSize  uint32
	ElementsType ElementsType
	Topology     PrimitiveTopology
	IndexSize    uint32
	IndexCount   uint32

	Positions []byte // 12 * VertexCount
	Elements  []byte // ElementSize * VertexCount
	Indices   []byte // IndexSize * IndexCount
}

// Validate checks that the buffer lengths agree with the counts.
func (m *Mesh) Validate() error {
	if m.IndexSize != 2 && m.IndexSize != 4 {
		return fmt.Errorf("mesh %q: %w (got %d)", m.Name, ErrInvalidIndexSize, m.IndexSize)
	}
	if uint64(len(m.Positions)) != PositionStride*uint64(m.VertexCount) {
		return fmt.Errorf("mesh %q: %w: %d bytes for %d vertices", m.Name, ErrPositionsSize, len(m.Positions), m.VertexCount)
	}
	if uint64(len(m.Elements)) != uint64(m.ElementSize)*uint64(m.VertexCount) {
		return fmt.Errorf("mesh %q: %w: %d bytes", m.Name, ErrElementsSize, len(m.Elements))
	}
	if uint64(len(m.Indices)) != uint64(m.IndexSize)*uint64(m.IndexCount) {
		return fmt.Errorf("mesh %q: %w: %d bytes for %d indices", m.Name, ErrIndicesSize, len(m.Indices), m.IndexCount)
	}
	return nil
}

// Index returns the i-th index value, widening 16-bit indices.
func (m *Mesh) Index(i int) uint32 {
	if m.IndexSize == 2 {
		return uint32(m.Indices[2*i]) | uint32(m.Indices[2*i+1])<<8
	}
	b := m.Indices[4*i:]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Position returns the xyz position of vertex i.
func (m *Mesh) Position(i int) [3]float32 {
	b := m.Positions[i*PositionStride:]
	return [3]float32{
		math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}

// MeshLOD is a named group of submeshes sharing one detail threshold.
type MeshLOD struct {
	Name      string
	Threshold float32 // camera distance below which this LOD is selected
	Meshes    []*Mesh
}

// Validate checks the LOD and each of its submeshes.
func (l *MeshLOD) Validate() error {
	if len(l.Meshes) == 0 {
		return fmt.Errorf("LOD %q: %w", l.Name, ErrEmptyLOD)
	}
	for i, m := range l.Meshes {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("LOD %q submesh %d: %w", l.Name, i, err)
		}
	}
	return nil
}

// VertexCount returns the total vertex count across all submeshes.
func (l *MeshLOD) VertexCount() int {
	total := 0
	for _, m := range l.Meshes {
		total += int(m.VertexCount)
	}
	return total
}

// LODGroup holds the levels of detail of one logical object.
type LODGroup struct {
	Name string
	LODs []*MeshLOD
}

// Validate checks the group and every LOD in it.
func (g *LODGroup) Validate() error {
	if len(g.LODs) == 0 {
		return fmt.Errorf("LOD group %q: %w", g.Name, ErrEmptyLODGroup)
	}
	for _, lod := range g.LODs {
		if err := lod.Validate(); err != nil {
			return fmt.Errorf("LOD group %q: %w", g.Name, err)
		}
	}
	return nil
}

// HighestDetail returns the first LOD, or nil for an empty group.
func (g *LODGroup) HighestDetail() *MeshLOD {
	if len(g.LODs) == 0 {
		return nil
	}
	return g.LODs[0]
}

// Label names the group by its highest-detail LOD. If that LOD has several
// submeshes, the first submesh's name is used instead.
func (g *LODGroup) Label() string {
	lod := g.HighestDetail()
	if lod == nil {
		return g.Name
	}
	if len(lod.Meshes) > 1 {
		return lod.Meshes[0].Name
	}
	return lod.Name
}

// LODFromThreshold picks the LOD for a camera distance, assuming ascending
// thresholds: the highest index whose threshold is <= distance, else 0.
func (g *LODGroup) LODFromThreshold(distance float32) int {
	for i := len(g.LODs) - 1; i > 0; i-- {
		if g.LODs[i].Threshold <= distance {
			return i
		}
	}
	return 0
}

// SortByThreshold orders LODs by ascending threshold, keeping the relative
// order of equal thresholds.
func (g *LODGroup) SortByThreshold() {
	sort.SliceStable(g.LODs, func(i, j int) bool {
		return g.LODs[i].Threshold < g.LODs[j].Threshold
	})
}

// MeshCount returns the total number of submeshes across all LODs.
func (g *LODGroup) MeshCount() int {
	total := 0
	for _, lod := range g.LODs {
		total += len(lod.Meshes)
	}
	return total
}
