package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/meshforge/internal/assets"
	"github.com/Faultbox/meshforge/internal/config"
	"github.com/Faultbox/meshforge/pkg/formats"
	"github.com/Faultbox/meshforge/pkg/geometry"
)

// sceneMesh describes one triangle mesh record in a raw scene fixture.
type sceneMesh struct {
	name      string
	lodID     int32
	threshold float32
	offset    float32
}

type sceneGroup struct {
	name   string
	meshes []sceneMesh
}

func putString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, int32(len(s)))
	buf.WriteString(s)
}

// rawScene builds importer output where every mesh is a single triangle.
func rawScene(groups ...sceneGroup) []byte {
	buf := new(bytes.Buffer)
	putString(buf, "scene")
	binary.Write(buf, binary.LittleEndian, int32(len(groups)))
	for _, g := range groups {
		putString(buf, g.name)
		binary.Write(buf, binary.LittleEndian, int32(len(g.meshes)))
		for _, m := range g.meshes {
			putString(buf, m.name)
			for _, v := range []int32{m.lodID, 4, int32(geometry.ElementsNormals), 3, 2, 3} {
				binary.Write(buf, binary.LittleEndian, v)
			}
			binary.Write(buf, binary.LittleEndian, m.threshold)
			for _, f := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
				binary.Write(buf, binary.LittleEndian, math.Float32bits(f+m.offset))
			}
			buf.Write(bytes.Repeat([]byte{0x40}, 12))
			for _, i := range []uint16{0, 1, 2} {
				binary.Write(buf, binary.LittleEndian, i)
			}
		}
	}
	return buf.Bytes()
}

func chairScene() []byte {
	return rawScene(sceneGroup{name: "chair", meshes: []sceneMesh{
		{"seat", 1, 0, 0},
		{"legs", 1, 0, 2},
		{"seat_low", 2, 30, 0},
	}})
}

func writeRaw(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Icon.Size = 16
	cfg.Icon.Supersample = 2
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	return p
}

func TestImport_SingleGroup(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "chair.raw", chairScene())
	out := filepath.Join(dir, "out")

	when := time.UnixMilli(1700000000000)
	p := newPipeline(t, testConfig(), WithClock(func() time.Time { return when }))

	saved, err := p.Import(raw, out)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, filepath.Join(out, "chair.asset"), saved[0].Path)

	g, err := p.Load(saved[0].Path)
	require.NoError(t, err)
	require.Len(t, g.LODGroups, 1)

	group := g.LODGroup(0)
	assert.Equal(t, "chair", group.Name)
	require.Len(t, group.LODs, 2)
	assert.Len(t, group.LODs[0].Meshes, 2)
	assert.Equal(t, float32(30), group.LODs[1].Threshold)

	assert.Equal(t, geometry.AssetMesh, g.Type)
	assert.Equal(t, saved[0].Info.ID, g.ID)
	assert.Equal(t, saved[0].Info.Hash, g.Hash)
	assert.True(t, g.ImportDate.Equal(when))
	assert.Equal(t, config.Default().Import, g.Settings)

	img, err := png.Decode(bytes.NewReader(g.Icon))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())

	info, ok := p.Registry().Lookup(saved[0].Path)
	require.True(t, ok)
	assert.Equal(t, g.ID, info.ID)
}

func TestImport_MultipleGroups(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "props.raw", rawScene(
		sceneGroup{name: "a", meshes: []sceneMesh{{"rock", 1, 0, 0}}},
		sceneGroup{name: "b", meshes: []sceneMesh{{"tree:big", 1, 0, 0}}},
	))

	p := newPipeline(t, testConfig())
	saved, err := p.Import(raw, dir)
	require.NoError(t, err)
	require.Len(t, saved, 2)

	assert.Equal(t, filepath.Join(dir, "props_rock.asset"), saved[0].Path)
	assert.Equal(t, filepath.Join(dir, "props_tree_big.asset"), saved[1].Path)
	assert.NotEqual(t, saved[0].Info.ID, saved[1].Info.ID)

	for _, s := range saved {
		_, err := os.Stat(s.Path)
		assert.NoError(t, err)
	}
}

func TestImport_ReimportKeepsID(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "chair.raw", chairScene())

	p := newPipeline(t, testConfig())
	first, err := p.Import(raw, dir)
	require.NoError(t, err)

	second, err := p.Import(raw, dir)
	require.NoError(t, err)

	assert.Equal(t, first[0].Info.ID, second[0].Info.ID)
	assert.Equal(t, first[0].Info.Hash, second[0].Info.Hash, "same content hashes the same")
}

func TestImport_ReimportAfterScanKeepsID(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "chair.raw", chairScene())

	first, err := newPipeline(t, testConfig()).Import(raw, dir)
	require.NoError(t, err)

	// A fresh process discovers existing assets through Scan.
	reg := assets.NewRegistry()
	n, err := reg.Scan(dir)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	second, err := newPipeline(t, testConfig(), WithRegistry(reg)).Import(raw, dir)
	require.NoError(t, err)
	assert.Equal(t, first[0].Info.ID, second[0].Info.ID)
}

func TestImport_SeparatePipelinesKeepID(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "chair.raw", chairScene())

	// Each CLI run builds its own pipeline with an empty registry.
	first, err := newPipeline(t, testConfig()).Import(raw, dir)
	require.NoError(t, err)
	second, err := newPipeline(t, testConfig()).Import(raw, dir)
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].Info.ID, second[0].Info.ID)

	g, err := formats.ParseAssetFile(second[0].Path)
	require.NoError(t, err)
	assert.Equal(t, first[0].Info.ID, g.ID)
}

func TestImport_CollidingLabels(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "props.raw", rawScene(
		sceneGroup{name: "a", meshes: []sceneMesh{{"LOD0", 1, 0, 0}}},
		sceneGroup{name: "b", meshes: []sceneMesh{{"LOD0", 1, 0, 5}}},
	))

	p := newPipeline(t, testConfig())
	saved, err := p.Import(raw, dir)
	require.NoError(t, err)
	require.Len(t, saved, 2)

	assert.Equal(t, filepath.Join(dir, "props_LOD0.asset"), saved[0].Path)
	assert.Equal(t, filepath.Join(dir, "props_LOD0_1.asset"), saved[1].Path)
	assert.NotEqual(t, saved[0].Info.ID, saved[1].Info.ID)
	assert.NotEqual(t, saved[0].Info.Hash, saved[1].Info.Hash)

	for i, name := range []string{"a", "b"} {
		g, err := formats.ParseAssetFile(saved[i].Path)
		require.NoError(t, err)
		assert.Equal(t, name, g.LODGroup(0).Name)
		assert.Equal(t, saved[i].Info.ID, g.ID)
	}

	// Reimport lands on the same files with the same IDs.
	again, err := p.Import(raw, dir)
	require.NoError(t, err)
	require.Len(t, again, 2)
	for i := range again {
		assert.Equal(t, saved[i].Path, again[i].Path)
		assert.Equal(t, saved[i].Info.ID, again[i].Info.ID)
	}
}

func TestImport_Failures(t *testing.T) {
	dir := t.TempDir()
	core, logs := observer.New(zapcore.ErrorLevel)
	p := newPipeline(t, testConfig(), WithLogger(zap.New(core)))

	bad := writeRaw(t, dir, "bad.raw", []byte{1, 2, 3})
	_, err := p.Import(bad, dir)
	assert.ErrorIs(t, err, ErrImport)
	assert.ErrorIs(t, err, formats.ErrTruncatedRawData)

	_, statErr := os.Stat(filepath.Join(dir, "bad.asset"))
	assert.True(t, os.IsNotExist(statErr), "no asset should be written")

	_, err = p.Import(filepath.Join(dir, "missing.raw"), dir)
	assert.ErrorIs(t, err, ErrImport)

	entries := logs.FilterField(zap.String("source", bad)).All()
	assert.NotEmpty(t, entries, "failure should be logged with the source path")
}

func TestSave_NoGroups(t *testing.T) {
	p := newPipeline(t, testConfig())
	_, err := p.Save(geometry.New(), filepath.Join(t.TempDir(), "empty.asset"))
	assert.ErrorIs(t, err, ErrSaveFailed)
	assert.ErrorIs(t, err, ErrNoLODGroups)
}

func TestSave_InvalidGroupLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	g := geometry.New()
	g.SetLODGroups([]*geometry.LODGroup{{Name: "broken", LODs: []*geometry.MeshLOD{{Name: "lod0"}}}})

	path := filepath.Join(dir, "broken.asset")
	_, err := newPipeline(t, testConfig()).Save(g, path)
	assert.ErrorIs(t, err, ErrSaveFailed)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSave_LegacyFormat(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "chair.raw", chairScene())

	for _, legacy := range []bool{false, true} {
		cfg := testConfig()
		cfg.Icon.Enabled = false
		cfg.Output.LegacyFormat = legacy
		out := filepath.Join(dir, map[bool]string{false: "v1", true: "legacy"}[legacy])

		p := newPipeline(t, cfg)
		saved, err := p.Import(raw, out)
		require.NoError(t, err)

		data, err := os.ReadFile(saved[0].Path)
		require.NoError(t, err)
		assert.Equal(t, !legacy, bytes.Contains(data, []byte("MFGP")))

		g, err := p.Load(saved[0].Path)
		require.NoError(t, err)
		assert.Empty(t, g.Icon)
		assert.Len(t, g.LODGroup(0).LODs, 2)
	}
}

func TestSave_BLAKE2bHashDiffers(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "chair.raw", chairScene())

	sha, err := newPipeline(t, testConfig()).Import(raw, filepath.Join(dir, "sha"))
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Hash.Algorithm = "blake2b"
	blake, err := newPipeline(t, cfg).Import(raw, filepath.Join(dir, "blake"))
	require.NoError(t, err)

	assert.NotEqual(t, sha[0].Info.Hash, blake[0].Info.Hash)
}

type failingRenderer struct{}

func (failingRenderer) Render(*geometry.MeshLOD, int) (*image.NRGBA, error) {
	return nil, errors.New("no GPU")
}

func TestSave_IconFailureStillWritesAsset(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "chair.raw", chairScene())

	core, logs := observer.New(zapcore.WarnLevel)
	p := newPipeline(t, testConfig(), WithRenderer(failingRenderer{}), WithLogger(zap.New(core)))

	saved, err := p.Import(raw, dir)
	require.NoError(t, err)
	assert.Empty(t, saved[0].Info.Icon)
	assert.Equal(t, 1, logs.FilterMessage("icon generation failed").Len())
}

func TestLoad_Failure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junk.asset")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0644))

	p := newPipeline(t, testConfig())
	_, err := p.Load(path)
	assert.ErrorIs(t, err, ErrLoadFailed)

	g := geometry.New()
	g.FullPath = "keep.asset"
	g.SourcePath = "chair.raw"
	before := *g
	assert.Error(t, p.LoadInto(g, path))
	assert.Equal(t, before, *g)
}

func TestLoadInto_KeepsSourcePath(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "chair.raw", chairScene())
	p := newPipeline(t, testConfig())
	saved, err := p.Import(raw, dir)
	require.NoError(t, err)

	g := geometry.New()
	g.SourcePath = raw
	require.NoError(t, p.LoadInto(g, saved[0].Path))
	assert.Equal(t, raw, g.SourcePath)
	assert.Equal(t, saved[0].Info.ID, g.ID)

	fresh := newPipeline(t, testConfig())
	require.NoError(t, fresh.LoadInto(geometry.New(), saved[0].Path))
	info, ok := fresh.Registry().Lookup(saved[0].Path)
	require.True(t, ok, "LoadInto records the asset")
	assert.Equal(t, saved[0].Info.ID, info.ID)
}

func TestPack(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "chair.raw", chairScene())
	p := newPipeline(t, testConfig())
	saved, err := p.Import(raw, dir)
	require.NoError(t, err)

	data, err := p.Pack(saved[0].Path)
	require.NoError(t, err)

	pack, err := formats.ParseEnginePack(data)
	require.NoError(t, err)
	require.Len(t, pack.LODs, 2)
	assert.Len(t, pack.LODs[0].Submeshes, 2)
	assert.Equal(t, float32(30), pack.LODs[1].Threshold)

	out := filepath.Join(dir, "engine", "chair.bin")
	require.NoError(t, p.PackTo(saved[0].Path, out))
	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, written)

	_, err = p.Pack(filepath.Join(dir, "missing.asset"))
	assert.ErrorIs(t, err, ErrLoadFailed)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Hash.Algorithm = "md5"
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Icon.Filter = "nearest"
	_, err = New(cfg)
	assert.Error(t, err)

	cfg.Icon.Enabled = false
	_, err = New(cfg)
	assert.NoError(t, err)
}

func TestBatchImport(t *testing.T) {
	dir := t.TempDir()
	var jobs []Job
	for _, name := range []string{"a", "b", "c", "d"} {
		raw := writeRaw(t, dir, name+".raw", rawScene(sceneGroup{name: name, meshes: []sceneMesh{{name, 1, 0, 0}}}))
		jobs = append(jobs, Job{RawPath: raw, DestDir: filepath.Join(dir, "out")})
	}
	jobs = append(jobs, Job{RawPath: writeRaw(t, dir, "bad.raw", []byte{0}), DestDir: dir})

	p := newPipeline(t, testConfig())
	results := p.BatchImport(context.Background(), jobs, 3)
	require.Len(t, results, len(jobs))

	for i, r := range results[:4] {
		assert.Equal(t, jobs[i], r.Job, "results keep job order")
		assert.NoError(t, r.Err)
		require.Len(t, r.Saved, 1)
	}
	assert.Error(t, results[4].Err)
	assert.False(t, results[4].Skipped)

	err := Errors(results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.raw")
	assert.Equal(t, 4, p.Registry().Len())
}

func TestBatchImport_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "chair.raw", chairScene())
	jobs := []Job{{raw, dir}, {raw, dir}, {raw, dir}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newPipeline(t, testConfig()).BatchImport(ctx, jobs, 2)
	for _, r := range results {
		assert.True(t, r.Skipped)
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Empty(t, r.Saved)
	}

	_, err := os.Stat(filepath.Join(dir, "chair.asset"))
	assert.True(t, os.IsNotExist(err))
}

func TestErrors_AllSucceeded(t *testing.T) {
	assert.NoError(t, Errors([]Result{{Job: Job{RawPath: "a"}}}))
}
