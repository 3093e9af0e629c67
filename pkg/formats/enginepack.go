// Engine pack: the dense runtime layout of a LOD group.

package formats

import (
	"errors"
	"fmt"

	"github.com/Faultbox/meshforge/pkg/binio"
	"github.com/Faultbox/meshforge/pkg/geometry"
)

// Engine pack errors.
var (
	ErrUnsupportedTopology = errors.New("unsupported primitive topology")
	ErrIndexSizeMismatch   = errors.New("index size does not match engine index width")
	ErrTruncatedEnginePack = errors.New("truncated engine pack")
	ErrInvalidEnginePack   = errors.New("invalid engine pack")
	ErrSubmeshSizeMismatch = errors.New("submeshes byte size does not match contents")
)

// EngineAlignment is the alignment of position and element blocks.
const EngineAlignment = 4

// EngineIndexSize returns the index width the engine derives from a vertex count.
func EngineIndexSize(vertexCount uint32) uint32 {
	if vertexCount < 1<<16 {
		return 2
	}
	return 4
}

// PackForEngine converts a LOD group into the runtime engine layout.
//
// Positions and elements are zero-padded to EngineAlignment. Indices are
// written unpadded; the engine reader expects exactly
// IndexSize*IndexCount bytes there.
func PackForEngine(group *geometry.LODGroup) ([]byte, error) {
	if err := group.Validate(); err != nil {
		return nil, err
	}

	w := binio.NewWriter(estimatePayloadSize(group))
	w.WriteInt32(int32(len(group.LODs)))

	for li, lod := range group.LODs {
		w.WriteFloat32(lod.Threshold)
		w.WriteInt32(int32(len(lod.Meshes)))
		size := w.ReserveInt32()

		for mi, m := range lod.Meshes {
			if err := packSubmesh(w, m); err != nil {
				return nil, fmt.Errorf("LOD %d submesh %d: %w", li, mi, err)
			}
		}
		w.PatchSizeSince(size)
	}

	return w.Bytes(), nil
}

func packSubmesh(w *binio.Writer, m *geometry.Mesh) error {
	if m.Topology != geometry.TopologyTriangleList {
		return fmt.Errorf("%w: %s", ErrUnsupportedTopology, m.Topology)
	}
	indices, err := engineIndices(m)
	if err != nil {
		return err
	}

	w.WriteInt32(int32(m.ElementSize))
	w.WriteInt32(int32(m.VertexCount))
	w.WriteInt32(int32(m.IndexCount))
	w.WriteInt32(int32(m.ElementsType))
	w.WriteInt32(int32(m.Topology))
	w.WritePadded(m.Positions, EngineAlignment)
	w.WritePadded(m.Elements, EngineAlignment)
	w.WriteBytes(indices)
	return nil
}

// engineIndices returns the index buffer at the width the engine derives from
// the vertex count. 32-bit indices of small meshes are narrowed; 16-bit
// indices cannot address large meshes and are rejected.
func engineIndices(m *geometry.Mesh) ([]byte, error) {
	want := EngineIndexSize(m.VertexCount)
	switch {
	case m.IndexSize == want:
		return m.Indices, nil
	case m.IndexSize == 4 && want == 2:
		out := make([]byte, 2*m.IndexCount)
		for i := 0; i < int(m.IndexCount); i++ {
			v := m.Index(i)
			if v > 0xFFFF {
				return nil, fmt.Errorf("%w: mesh %q index %d value %d does not fit 16 bits",
					ErrIndexSizeMismatch, m.Name, i, v)
			}
			out[2*i] = byte(v)
			out[2*i+1] = byte(v >> 8)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: mesh %q has %d-byte indices, engine expects %d for %d vertices",
			ErrIndexSizeMismatch, m.Name, m.IndexSize, want, m.VertexCount)
	}
}

// EngineSubmesh is one submesh as laid out in an engine pack. Positions and
// Elements include their alignment padding.
type EngineSubmesh struct {
	ElementSize  uint32
	VertexCount  uint32
	IndexCount   uint32
	ElementsType geometry.ElementsType
	Topology     geometry.PrimitiveTopology
	Positions    []byte
	Elements     []byte
	Indices      []byte
}

// IndexSize returns the index width the engine uses for this submesh.
func (s *EngineSubmesh) IndexSize() uint32 {
	return EngineIndexSize(s.VertexCount)
}

// EngineLOD is one level of detail in an engine pack.
type EngineLOD struct {
	Threshold float32
	ByteSize  uint32 // submeshesByteSize as written
	Submeshes []EngineSubmesh
}

// EnginePack is a decoded engine pack.
type EnginePack struct {
	LODs []EngineLOD
}

// ParseEnginePack decodes an engine pack the way the runtime loader does,
// checking each LOD's recorded byte size against the bytes it spans.
func ParseEnginePack(data []byte) (*EnginePack, error) {
	r := binio.NewReader(data)

	lodCount := r.ReadInt32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedEnginePack, err)
	}
	if lodCount <= 0 {
		return nil, fmt.Errorf("%w: LOD count %d", ErrInvalidEnginePack, lodCount)
	}

	pack := &EnginePack{LODs: make([]EngineLOD, lodCount)}
	for i := range pack.LODs {
		lod := &pack.LODs[i]
		lod.Threshold = r.ReadFloat32()
		submeshCount := r.ReadInt32()
		lod.ByteSize = r.ReadUint32()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("LOD %d: %w: %w", i, ErrTruncatedEnginePack, err)
		}
		if submeshCount <= 0 {
			return nil, fmt.Errorf("LOD %d: %w: submesh count %d", i, ErrInvalidEnginePack, submeshCount)
		}

		start := r.Pos()
		lod.Submeshes = make([]EngineSubmesh, submeshCount)
		for j := range lod.Submeshes {
			if err := readEngineSubmesh(r, &lod.Submeshes[j]); err != nil {
				return nil, fmt.Errorf("LOD %d submesh %d: %w", i, j, err)
			}
		}
		if consumed := r.Pos() - start; uint32(consumed) != lod.ByteSize {
			return nil, fmt.Errorf("LOD %d: %w: recorded %d, actual %d", i, ErrSubmeshSizeMismatch, lod.ByteSize, consumed)
		}
	}

	return pack, nil
}

func readEngineSubmesh(r *binio.Reader, s *EngineSubmesh) error {
	s.ElementSize = r.ReadUint32()
	s.VertexCount = r.ReadUint32()
	s.IndexCount = r.ReadUint32()
	s.ElementsType = geometry.ElementsType(r.ReadUint32())
	s.Topology = geometry.PrimitiveTopology(r.ReadUint32())
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTruncatedEnginePack, err)
	}

	posSize := uint64(geometry.PositionStride) * uint64(s.VertexCount)
	elemSize := uint64(s.ElementSize) * uint64(s.VertexCount)
	indexSize := uint64(s.IndexSize()) * uint64(s.IndexCount)
	if posSize+elemSize+indexSize > uint64(r.Len()) {
		return fmt.Errorf("%w: submesh buffers need %d bytes, %d left",
			ErrTruncatedEnginePack, posSize+elemSize+indexSize, r.Len())
	}

	s.Positions = r.ReadBytes(binio.AlignUp(int(posSize), EngineAlignment))
	s.Elements = r.ReadBytes(binio.AlignUp(int(elemSize), EngineAlignment))
	s.Indices = r.ReadBytes(int(indexSize))
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTruncatedEnginePack, err)
	}
	return nil
}
