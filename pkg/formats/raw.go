// Raw scene decoder for the byte stream produced by the external FBX importer.

package formats

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/Faultbox/meshforge/pkg/binio"
	"github.com/Faultbox/meshforge/pkg/geometry"
)

// Raw scene errors.
var (
	ErrEmptyRawData         = errors.New("empty raw scene data")
	ErrTruncatedRawData     = errors.New("truncated raw scene data")
	ErrInvalidLODGroupCount = errors.New("invalid LOD group count")
	ErrInvalidMeshCount     = errors.New("invalid mesh count")
	ErrInvalidMeshHeader    = errors.New("invalid mesh header")
)

// InvalidLODID marks a mesh that does not belong to a shared LOD.
const InvalidLODID int32 = -1

// randomNameLength is the length of the suffix in synthesized names.
const randomNameLength = 8

// RandomName returns an 8 character lowercase alphanumeric string.
func RandomName() string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return s[:randomNameLength]
}

// ParseRawScene decodes the importer's output into LOD groups.
func ParseRawScene(data []byte) ([]*geometry.LODGroup, error) {
	if len(data) == 0 {
		return nil, ErrEmptyRawData
	}

	r := binio.NewReader(data)

	// Scene name is not retained.
	if n := r.ReadInt32(); n > 0 {
		r.Skip(int(n))
	}
	groupCount := r.ReadInt32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: scene header: %w", ErrTruncatedRawData, err)
	}
	if groupCount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLODGroupCount, groupCount)
	}

	groups := make([]*geometry.LODGroup, 0, groupCount)
	for i := int32(0); i < groupCount; i++ {
		group, err := parseRawLODGroup(r)
		if err != nil {
			return nil, fmt.Errorf("parsing LOD group %d: %w", i, err)
		}
		groups = append(groups, group)
	}

	return groups, nil
}

// ParseRawSceneFile decodes a raw scene stored on disk.
func ParseRawSceneFile(path string) ([]*geometry.LODGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading raw scene file: %w", err)
	}
	return ParseRawScene(data)
}

// DecodeRawInto replaces g's LOD groups with the decoded scene. On error g is
// left unchanged.
func DecodeRawInto(g *geometry.Geometry, data []byte) error {
	groups, err := ParseRawScene(data)
	if err != nil {
		return err
	}
	g.SetLODGroups(groups)
	return nil
}

func parseRawLODGroup(r *binio.Reader) (*geometry.LODGroup, error) {
	name, ok := r.ReadString()
	if !ok {
		name = "lod_" + RandomName()
	}
	meshCount := r.ReadInt32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedRawData, err)
	}
	if meshCount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMeshCount, meshCount)
	}

	group := &geometry.LODGroup{Name: name}
	lodIndex := make(map[int32]int)

	for i := int32(0); i < meshCount; i++ {
		lodID, threshold, mesh, err := parseRawMesh(r)
		if err != nil {
			return nil, fmt.Errorf("parsing mesh %d: %w", i, err)
		}

		if idx, seen := lodIndex[lodID]; seen && lodID != InvalidLODID {
			group.LODs[idx].Meshes = append(group.LODs[idx].Meshes, mesh)
			continue
		}

		lodIndex[lodID] = len(group.LODs)
		group.LODs = append(group.LODs, &geometry.MeshLOD{
			Name:      mesh.Name,
			Threshold: threshold,
			Meshes:    []*geometry.Mesh{mesh},
		})
	}

	return group, nil
}

func parseRawMesh(r *binio.Reader) (lodID int32, threshold float32, mesh *geometry.Mesh, err error) {
	name, ok := r.ReadString()
	if !ok {
		name = "mesh_" + RandomName()
	}

	lodID = r.ReadInt32()
	elementSize := r.ReadInt32()
	elementsType := r.ReadInt32()
	vertexCount := r.ReadInt32()
	indexSize := r.ReadInt32()
	indexCount := r.ReadInt32()
	threshold = r.ReadFloat32()
	if err := r.Err(); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %w", ErrTruncatedRawData, err)
	}

	if elementSize < 0 || vertexCount < 0 || indexCount < 0 {
		return 0, 0, nil, fmt.Errorf("%w: negative size in mesh %q", ErrInvalidMeshHeader, name)
	}
	if indexSize != 2 && indexSize != 4 {
		return 0, 0, nil, fmt.Errorf("%w: index size %d in mesh %q", ErrInvalidMeshHeader, indexSize, name)
	}

	mesh = &geometry.Mesh{
		Name:         name,
		VertexCount:  uint32(vertexCount),
		ElementSize:  uint32(elementSize),
		ElementsType: geometry.ElementsType(elementsType),
		Topology:     geometry.TopologyTriangleList,
		IndexSize:    uint32(indexSize),
		IndexCount:   uint32(indexCount),
	}

	mesh.Positions = r.ReadBytes(geometry.PositionStride * int(vertexCount))
	mesh.Elements = r.ReadBytes(int(elementSize) * int(vertexCount))
	mesh.Indices = r.ReadBytes(int(indexSize) * int(indexCount))
	if err := r.Err(); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: buffers of mesh %q: %w", ErrTruncatedRawData, name, err)
	}

	return lodID, threshold, mesh, nil
}
