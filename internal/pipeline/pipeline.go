// Package pipeline runs the geometry content flow: decode importer output,
// save assets with icons and content hashes, reload them, and pack them for
// the engine.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/meshforge/internal/assets"
	"github.com/Faultbox/meshforge/internal/config"
	"github.com/Faultbox/meshforge/internal/icon"
	"github.com/Faultbox/meshforge/pkg/contenthash"
	"github.com/Faultbox/meshforge/pkg/formats"
	"github.com/Faultbox/meshforge/pkg/geometry"
)

// Pipeline errors.
var (
	ErrNoLODGroups = errors.New("geometry has no LOD groups")
	ErrLoadFailed  = errors.New("asset failed to load")
	ErrSaveFailed  = errors.New("asset failed to save")
	ErrImport      = errors.New("import failed")
)

// Saved describes one asset file written by Save.
type Saved struct {
	Path string
	Info assets.Info
}

// Pipeline holds the collaborators shared by all operations. It is safe for
// concurrent use on distinct geometries.
type Pipeline struct {
	cfg      *config.Config
	registry *assets.Registry
	renderer icon.Renderer
	hasher   contenthash.Hasher
	log      *zap.Logger
	now      func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRegistry shares an existing registry, e.g. one filled by Scan.
func WithRegistry(r *assets.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithRenderer replaces the icon renderer.
func WithRenderer(r icon.Renderer) Option {
	return func(p *Pipeline) { p.renderer = r }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithClock overrides the import timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	hasher, err := contenthash.ByName(cfg.Hash.Algorithm)
	if err != nil {
		return nil, err
	}
	if _, err := icon.Interpolator(cfg.Icon.Filter); cfg.Icon.Enabled && err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:    cfg,
		hasher: hasher,
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = assets.NewRegistry()
	}
	if p.renderer == nil {
		p.renderer = icon.NewSoftwareRenderer()
	}
	return p, nil
}

// Registry returns the registry the pipeline records saved and loaded assets in.
func (p *Pipeline) Registry() *assets.Registry {
	return p.registry
}

func (p *Pipeline) assetOptions() formats.AssetOptions {
	return formats.AssetOptions{Legacy: p.cfg.Output.LegacyFormat, Hasher: p.hasher}
}

// Import decodes the raw scene at rawPath and saves one asset per LOD group
// into destDir, named after the raw file.
func (p *Pipeline) Import(rawPath, destDir string) ([]Saved, error) {
	log := p.log.With(zap.String("source", rawPath))
	start := time.Now()

	data, err := os.ReadFile(rawPath)
	if err != nil {
		log.Error("reading raw scene failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrImport, rawPath, err)
	}

	g := geometry.New()
	if err := formats.DecodeRawInto(g, data); err != nil {
		log.Error("decoding raw scene failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrImport, rawPath, err)
	}
	g.Settings = p.cfg.Import
	g.SourcePath = rawPath

	base := strings.TrimSuffix(filepath.Base(rawPath), filepath.Ext(rawPath))
	saved, err := p.Save(g, filepath.Join(destDir, base+geometry.AssetFileExtension))
	if err != nil {
		return saved, err
	}

	log.Info("imported",
		zap.Int("groups", len(g.LODGroups)),
		zap.Int("assets", len(saved)),
		zap.Duration("elapsed", time.Since(start)))
	return saved, nil
}

// Save writes every LOD group of g as its own asset file. With a single
// group the file is path itself; with several, each group's label is
// appended to the base name, plus the group index when labels collide. For
// single-group geometry g's metadata is updated to match the written file.
func (p *Pipeline) Save(g *geometry.Geometry, path string) ([]Saved, error) {
	if len(g.LODGroups) == 0 {
		p.log.Error("save failed", zap.String("path", path), zap.Error(ErrNoLODGroups))
		return nil, fmt.Errorf("%w: %s: %w", ErrSaveFailed, path, ErrNoLODGroups)
	}

	dir := filepath.Dir(path)
	names := formats.AssetFileNames(filepath.Base(path), g.LODGroups)
	multiple := len(g.LODGroups) > 1

	saved := make([]Saved, 0, len(g.LODGroups))
	for i, group := range g.LODGroups {
		target := filepath.Join(dir, names[i])
		info, err := p.saveGroup(g, group, target)
		if err != nil {
			p.log.Error("save failed", zap.String("path", target), zap.Error(err))
			return saved, fmt.Errorf("%w: %s: %w", ErrSaveFailed, target, err)
		}
		saved = append(saved, Saved{Path: target, Info: info})
	}

	if !multiple {
		info := saved[0].Info
		g.Type = info.Type
		g.ID = info.ID
		g.Hash = info.Hash
		g.Icon = info.Icon
		g.ImportDate = info.ImportDate
		g.FullPath = saved[0].Path
	}
	return saved, nil
}

func (p *Pipeline) saveGroup(g *geometry.Geometry, group *geometry.LODGroup, target string) (assets.Info, error) {
	if err := group.Validate(); err != nil {
		return assets.Info{}, err
	}

	meta := geometry.Asset{
		Type:       geometry.AssetMesh,
		ID:         p.registry.IDFor(target, geometry.AssetMesh),
		ImportDate: p.now(),
		SourcePath: g.SourcePath,
		Icon:       p.renderIcon(group, target),
	}

	data, hash, err := formats.EncodeAsset(meta, g.Settings, group, p.assetOptions())
	if err != nil {
		return assets.Info{}, err
	}
	if err := formats.WriteFileAtomic(target, data, 0644); err != nil {
		return assets.Info{}, err
	}

	meta.Hash = hash
	meta.FullPath = target
	info := assets.InfoFromAsset(meta)
	if err := p.registry.Put(info); err != nil {
		return assets.Info{}, err
	}

	p.log.Debug("saved asset",
		zap.String("path", target),
		zap.Stringer("id", meta.ID),
		zap.Stringer("hash", hash),
		zap.Int("bytes", len(data)))
	info, _ = p.registry.Lookup(target)
	return info, nil
}

// renderIcon returns PNG bytes for the group's highest-detail LOD. A failed
// render is logged and the asset is written without an icon.
func (p *Pipeline) renderIcon(group *geometry.LODGroup, target string) []byte {
	if !p.cfg.Icon.Enabled {
		return nil
	}
	opts := icon.Options{
		Size:        p.cfg.Icon.Size,
		Supersample: p.cfg.Icon.Supersample,
		Filter:      p.cfg.Icon.Filter,
	}
	png, err := icon.Generate(p.renderer, group.HighestDetail(), opts)
	if err != nil {
		p.log.Warn("icon generation failed", zap.String("path", target), zap.Error(err))
		return nil
	}
	return png
}

// Load reads the asset at path and records it in the registry.
func (p *Pipeline) Load(path string) (*geometry.Geometry, error) {
	g, err := formats.ParseAssetFile(path)
	if err != nil {
		return nil, p.loadFailed(path, err)
	}
	p.record(g.Asset)
	return g, nil
}

// LoadInto replaces g with the asset at path. On failure g is unchanged.
func (p *Pipeline) LoadInto(g *geometry.Geometry, path string) error {
	if err := formats.LoadInto(g, path); err != nil {
		return p.loadFailed(path, err)
	}
	p.record(g.Asset)
	return nil
}

func (p *Pipeline) loadFailed(path string, err error) error {
	p.log.Error("load failed", zap.String("path", path), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrLoadFailed, path, err)
}

func (p *Pipeline) record(a geometry.Asset) {
	if err := p.registry.Put(assets.InfoFromAsset(a)); err != nil {
		p.log.Warn("registry rejected loaded asset", zap.String("path", a.FullPath), zap.Error(err))
	}
}

// Pack loads the asset at assetPath and returns its engine pack.
func (p *Pipeline) Pack(assetPath string) ([]byte, error) {
	g, err := p.Load(assetPath)
	if err != nil {
		return nil, err
	}
	data, err := formats.PackForEngine(g.LODGroup(0))
	if err != nil {
		p.log.Error("pack failed", zap.String("path", assetPath), zap.Error(err))
		return nil, fmt.Errorf("packing %s: %w", assetPath, err)
	}
	return data, nil
}

// PackTo packs the asset at assetPath and writes the result to out.
func (p *Pipeline) PackTo(assetPath, out string) error {
	data, err := p.Pack(assetPath)
	if err != nil {
		return err
	}
	if err := formats.WriteFileAtomic(out, data, 0644); err != nil {
		p.log.Error("writing engine pack failed", zap.String("path", out), zap.Error(err))
		return fmt.Errorf("writing %s: %w", out, err)
	}
	p.log.Info("packed", zap.String("asset", assetPath), zap.String("out", out), zap.Int("bytes", len(data)))
	return nil
}
