// Asset container codec for geometry .asset files.

package formats

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Faultbox/meshforge/pkg/binio"
	"github.com/Faultbox/meshforge/pkg/contenthash"
	"github.com/Faultbox/meshforge/pkg/geometry"
)

// Asset file errors.
var (
	ErrTruncatedAssetData     = errors.New("truncated asset data")
	ErrInvalidAssetData       = errors.New("invalid asset data")
	ErrNotGeometryAsset       = errors.New("asset is not a mesh")
	ErrUnsupportedPayload     = errors.New("unsupported geometry payload version")
	ErrTrailingPayloadBytes   = errors.New("trailing bytes after geometry payload")
	ErrInvalidAssetHashLength = errors.New("invalid asset hash length")
)

const (
	// payloadMagic opens a versioned geometry payload. Read as an int32 name
	// length it is far larger than any real name, so legacy payloads are
	// told apart without ambiguity.
	payloadMagic = "MFGP"

	// PayloadVersion is the current geometry payload layout version.
	PayloadVersion uint32 = 1
)

// AssetOptions controls how geometry assets are encoded.
type AssetOptions struct {
	// Legacy omits the payload magic and version for byte-exact
	// compatibility with unversioned files.
	Legacy bool
	// Hasher computes the per-LOD and overall content digests.
	// Nil selects SHA-256.
	Hasher contenthash.Hasher
}

func (o AssetOptions) hasher() contenthash.Hasher {
	if o.Hasher == nil {
		return contenthash.SHA256
	}
	return o.Hasher
}

// writeAssetHeader writes the metadata block shared by every asset type.
func writeAssetHeader(w *binio.Writer, a geometry.Asset) {
	w.WriteInt32(int32(a.Type))
	w.WriteBytes(a.ID[:])
	w.WriteInt64(a.ImportDate.UnixMilli())
	w.WriteInt32(contenthash.Size)
	w.WriteBytes(a.Hash[:])
	w.WriteInt32(int32(len(a.Icon)))
	w.WriteBytes(a.Icon)
}

// ReadAssetHeader reads the metadata block shared by every asset type.
func ReadAssetHeader(r *binio.Reader) (geometry.Asset, error) {
	var a geometry.Asset

	a.Type = geometry.AssetType(r.ReadInt32())
	copy(a.ID[:], r.ReadBytes(len(uuid.UUID{})))
	a.ImportDate = time.UnixMilli(r.ReadInt64())

	hashLen := r.ReadInt32()
	if r.Err() == nil && hashLen != contenthash.Size {
		return a, fmt.Errorf("%w: %d", ErrInvalidAssetHashLength, hashLen)
	}
	copy(a.Hash[:], r.ReadBytes(contenthash.Size))

	iconLen := r.ReadInt32()
	if r.Err() == nil && iconLen < 0 {
		return a, fmt.Errorf("%w: icon length %d", ErrInvalidAssetData, iconLen)
	}
	a.Icon = r.ReadBytes(int(iconLen))

	if err := r.Err(); err != nil {
		return a, fmt.Errorf("%w: header: %w", ErrTruncatedAssetData, err)
	}
	return a, nil
}

// ReadAssetInfo reads only the header of an asset file.
func ReadAssetInfo(path string) (geometry.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return geometry.Asset{}, fmt.Errorf("reading asset file: %w", err)
	}
	a, err := ReadAssetHeader(binio.NewReader(data))
	if err != nil {
		return a, err
	}
	a.FullPath = path
	return a, nil
}

// WriteImportSettings writes the fixed-order settings block.
func WriteImportSettings(w *binio.Writer, s geometry.ImportSettings) {
	w.WriteFloat32(s.SmoothingAngle)
	w.WriteBool(s.CalculateNormals)
	w.WriteBool(s.CalculateTangents)
	w.WriteBool(s.ReverseHandedness)
	w.WriteBool(s.ImportEmbeddedTextures)
	w.WriteBool(s.ImportAnimations)
}

// ReadImportSettings reads the fixed-order settings block.
func ReadImportSettings(r *binio.Reader) (geometry.ImportSettings, error) {
	s := geometry.ImportSettings{
		SmoothingAngle:         r.ReadFloat32(),
		CalculateNormals:       r.ReadBool(),
		CalculateTangents:      r.ReadBool(),
		ReverseHandedness:      r.ReadBool(),
		ImportEmbeddedTextures: r.ReadBool(),
		ImportAnimations:       r.ReadBool(),
	}
	if err := r.Err(); err != nil {
		return s, fmt.Errorf("%w: import settings: %w", ErrTruncatedAssetData, err)
	}
	return s, nil
}

// EncodeGeometryPayload serializes one LOD group and returns the payload
// together with its content hash. Each LOD's submesh region is hashed on its
// own and the overall hash is taken over the concatenated LOD digests.
func EncodeGeometryPayload(group *geometry.LODGroup, opts AssetOptions) ([]byte, contenthash.Digest, error) {
	if err := group.Validate(); err != nil {
		return nil, contenthash.Digest{}, err
	}

	h := opts.hasher()
	w := binio.NewWriter(estimatePayloadSize(group))

	if !opts.Legacy {
		w.WriteBytes([]byte(payloadMagic))
		w.WriteUint32(PayloadVersion)
	}

	w.WriteString(group.Name)
	w.WriteInt32(int32(len(group.LODs)))

	lodHashes := make([]contenthash.Digest, 0, len(group.LODs))
	for _, lod := range group.LODs {
		w.WriteString(lod.Name)
		w.WriteFloat32(lod.Threshold)
		w.WriteInt32(int32(len(lod.Meshes)))

		start := w.Pos()
		for _, m := range lod.Meshes {
			writePayloadMesh(w, m)
		}
		lodHashes = append(lodHashes, h.Sum(w.Bytes(), start, w.Pos()-start))
	}

	return w.Bytes(), contenthash.SumOfSums(h, lodHashes...), nil
}

func writePayloadMesh(w *binio.Writer, m *geometry.Mesh) {
	w.WriteString(m.Name)
	w.WriteInt32(int32(m.ElementSize))
	w.WriteInt32(int32(m.ElementsType))
	w.WriteInt32(int32(m.Topology))
	w.WriteInt32(int32(m.VertexCount))
	w.WriteInt32(int32(m.IndexSize))
	w.WriteInt32(int32(m.IndexCount))
	w.WriteBytes(m.Positions)
	w.WriteBytes(m.Elements)
	w.WriteBytes(m.Indices)
}

func estimatePayloadSize(group *geometry.LODGroup) int {
	size := 16 + len(group.Name)
	for _, lod := range group.LODs {
		size += 12 + len(lod.Name)
		for _, m := range lod.Meshes {
			size += 28 + len(m.Name) + len(m.Positions) + len(m.Elements) + len(m.Indices)
		}
	}
	return size
}

// DecodeGeometryPayload parses a payload produced by EncodeGeometryPayload,
// with or without the version prefix.
func DecodeGeometryPayload(payload []byte) (*geometry.LODGroup, error) {
	r := binio.NewReader(payload)

	if len(payload) >= 8 && string(payload[:4]) == payloadMagic {
		r.Skip(4)
		if v := r.ReadUint32(); v != PayloadVersion {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedPayload, v)
		}
	}

	group := &geometry.LODGroup{}
	group.Name, _ = r.ReadString()
	lodCount := r.ReadInt32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: payload header: %w", ErrTruncatedAssetData, err)
	}
	if lodCount <= 0 {
		return nil, fmt.Errorf("%w: LOD count %d", ErrInvalidAssetData, lodCount)
	}

	group.LODs = make([]*geometry.MeshLOD, 0, lodCount)
	for i := int32(0); i < lodCount; i++ {
		lod, err := readPayloadLOD(r)
		if err != nil {
			return nil, fmt.Errorf("reading LOD %d: %w", i, err)
		}
		group.LODs = append(group.LODs, lod)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingPayloadBytes, r.Len())
	}
	return group, nil
}

func readPayloadLOD(r *binio.Reader) (*geometry.MeshLOD, error) {
	lod := &geometry.MeshLOD{}
	lod.Name, _ = r.ReadString()
	lod.Threshold = r.ReadFloat32()
	meshCount := r.ReadInt32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedAssetData, err)
	}
	if meshCount <= 0 {
		return nil, fmt.Errorf("%w: submesh count %d", ErrInvalidAssetData, meshCount)
	}

	lod.Meshes = make([]*geometry.Mesh, 0, meshCount)
	for i := int32(0); i < meshCount; i++ {
		m, err := readPayloadMesh(r)
		if err != nil {
			return nil, fmt.Errorf("reading submesh %d: %w", i, err)
		}
		lod.Meshes = append(lod.Meshes, m)
	}
	return lod, nil
}

func readPayloadMesh(r *binio.Reader) (*geometry.Mesh, error) {
	name, _ := r.ReadString()
	elementSize := r.ReadInt32()
	elementsType := r.ReadInt32()
	topology := r.ReadInt32()
	vertexCount := r.ReadInt32()
	indexSize := r.ReadInt32()
	indexCount := r.ReadInt32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedAssetData, err)
	}
	if elementSize < 0 || vertexCount < 0 || indexSize < 0 || indexCount < 0 {
		return nil, fmt.Errorf("%w: negative size in submesh %q", ErrInvalidAssetData, name)
	}

	m := &geometry.Mesh{
		Name:         name,
		VertexCount:  uint32(vertexCount),
		ElementSize:  uint32(elementSize),
		ElementsType: geometry.ElementsType(elementsType),
		Topology:     geometry.PrimitiveTopology(topology),
		IndexSize:    uint32(indexSize),
		IndexCount:   uint32(indexCount),
	}
	m.Positions = r.ReadBytes(geometry.PositionStride * int(vertexCount))
	m.Elements = r.ReadBytes(int(elementSize) * int(vertexCount))
	m.Indices = r.ReadBytes(int(indexSize) * int(indexCount))
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: buffers of submesh %q: %w", ErrTruncatedAssetData, name, err)
	}
	return m, nil
}

// EncodeAsset builds a complete asset file for one LOD group. The returned
// digest is the content hash that was written into the header; meta.Hash is
// ignored.
func EncodeAsset(meta geometry.Asset, settings geometry.ImportSettings, group *geometry.LODGroup, opts AssetOptions) ([]byte, contenthash.Digest, error) {
	payload, hash, err := EncodeGeometryPayload(group, opts)
	if err != nil {
		return nil, hash, err
	}
	meta.Type = geometry.AssetMesh
	meta.Hash = hash

	w := binio.NewWriter(len(payload) + len(meta.Icon) + 128)
	writeAssetHeader(w, meta)
	WriteImportSettings(w, settings)
	w.WriteInt32(int32(len(payload)))
	w.WriteBytes(payload)

	return w.Bytes(), hash, nil
}

// ParseAsset decodes a complete geometry asset file.
func ParseAsset(data []byte) (*geometry.Geometry, error) {
	r := binio.NewReader(data)

	meta, err := ReadAssetHeader(r)
	if err != nil {
		return nil, err
	}
	if meta.Type != geometry.AssetMesh {
		return nil, fmt.Errorf("%w: type %s", ErrNotGeometryAsset, meta.Type)
	}

	settings, err := ReadImportSettings(r)
	if err != nil {
		return nil, err
	}

	payloadLen := r.ReadInt32()
	if r.Err() == nil && payloadLen < 0 {
		return nil, fmt.Errorf("%w: payload length %d", ErrInvalidAssetData, payloadLen)
	}
	payload := r.ReadBytes(int(payloadLen))
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrTruncatedAssetData, err)
	}

	group, err := DecodeGeometryPayload(payload)
	if err != nil {
		return nil, err
	}

	return &geometry.Geometry{
		Asset:     meta,
		Settings:  settings,
		LODGroups: []*geometry.LODGroup{group},
	}, nil
}

// ParseAssetFile reads and decodes a geometry asset from disk.
func ParseAssetFile(path string) (*geometry.Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading asset file: %w", err)
	}
	g, err := ParseAsset(data)
	if err != nil {
		return nil, err
	}
	g.FullPath = path
	return g, nil
}

// LoadInto replaces g's metadata, settings and LOD groups with the contents
// of the asset file at path. g is not modified when loading fails.
func LoadInto(g *geometry.Geometry, path string) error {
	loaded, err := ParseAssetFile(path)
	if err != nil {
		return err
	}
	source := g.SourcePath
	*g = *loaded
	if g.SourcePath == "" {
		g.SourcePath = source
	}
	return nil
}
