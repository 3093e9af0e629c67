package geometry

import (
	"time"

	"github.com/google/uuid"

	"github.com/Faultbox/meshforge/pkg/contenthash"
)

// ImportSettings controls how imported scene data is processed.
type ImportSettings struct {
	SmoothingAngle         float32 `yaml:"smoothing_angle" toml:"smoothing_angle"`
	CalculateNormals       bool    `yaml:"calculate_normals" toml:"calculate_normals"`
	CalculateTangents      bool    `yaml:"calculate_tangents" toml:"calculate_tangents"`
	ReverseHandedness      bool    `yaml:"reverse_handedness" toml:"reverse_handedness"`
	ImportEmbeddedTextures bool    `yaml:"import_embedded_textures" toml:"import_embedded_textures"`
	ImportAnimations       bool    `yaml:"import_animations" toml:"import_animations"`
}

// DefaultImportSettings returns the settings used for new geometry assets.
func DefaultImportSettings() ImportSettings {
	return ImportSettings{
		SmoothingAngle:    178.0,
		CalculateNormals:  false,
		CalculateTangents: false,
	}
}

// Asset is the metadata shared by every asset file.
type Asset struct {
	Type       AssetType
	ID         uuid.UUID
	ImportDate time.Time
	Hash       contenthash.Digest
	Icon       []byte // PNG
	SourcePath string
	FullPath   string
}

// Geometry is a mesh asset: one or more LOD groups plus import settings.
type Geometry struct {
	Asset
	Settings  ImportSettings
	LODGroups []*LODGroup
}

// New creates an empty geometry asset with default import settings.
func New() *Geometry {
	return &Geometry{
		Asset:    Asset{Type: AssetMesh},
		Settings: DefaultImportSettings(),
	}
}

// LODGroup returns the group at index i, or nil when out of range.
func (g *Geometry) LODGroup(i int) *LODGroup {
	if i < 0 || i >= len(g.LODGroups) {
		return nil
	}
	return g.LODGroups[i]
}

// SetLODGroups replaces all LOD groups.
func (g *Geometry) SetLODGroups(groups []*LODGroup) {
	g.LODGroups = groups
}
