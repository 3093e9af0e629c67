package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/Faultbox/meshforge/internal/assets"
	"github.com/Faultbox/meshforge/internal/config"
	"github.com/Faultbox/meshforge/internal/pipeline"
	"github.com/Faultbox/meshforge/pkg/formats"
)

var errUsage = errors.New("usage")

func usage(line string) error {
	fmt.Fprintln(os.Stderr, "Usage: meshtool "+line)
	return errUsage
}

func cmdImport(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return usage("import <scene.raw> [outdir]")
	}
	outDir := cfg.Output.Dir
	if len(args) > 1 {
		outDir = args[1]
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	saved, err := p.Import(args[0], outDir)
	if err != nil {
		return err
	}
	for _, s := range saved {
		fmt.Printf("%s  %s  %s\n", s.Info.ID, s.Info.Hash, s.Path)
	}
	return nil
}

func cmdBatch(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	workers := fs.Int("j", cfg.Output.Workers, "Number of parallel imports")
	fs.Parse(args)

	if fs.NArg() < 2 {
		return usage("batch [-j N] <outdir> <scene.raw...>")
	}
	outDir := fs.Arg(0)

	var jobs []pipeline.Job
	for _, raw := range fs.Args()[1:] {
		jobs = append(jobs, pipeline.Job{RawPath: raw, DestDir: outDir})
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results := p.BatchImport(ctx, jobs, *workers)

	var ok, skipped int
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Err == nil:
			ok++
			for _, s := range r.Saved {
				fmt.Printf("ok    %s\n", s.Path)
			}
		default:
			fmt.Printf("FAIL  %s\n", r.Job.RawPath)
		}
	}
	fmt.Printf("\n%d imported, %d failed, %d skipped\n", ok, len(results)-ok-skipped, skipped)

	if err := pipeline.Errors(results); err != nil {
		logFailure("batch import had failures", err)
		return fmt.Errorf("%d of %d imports did not complete", len(results)-ok, len(results))
	}
	return nil
}

func cmdInfo(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return usage("info <file.asset>")
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	g, err := p.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Asset:    %s\n", g.FullPath)
	fmt.Printf("Type:     %s\n", g.Type)
	fmt.Printf("ID:       %s\n", g.ID)
	fmt.Printf("Imported: %s\n", g.ImportDate.Format("2006-01-02 15:04:05"))
	fmt.Printf("Hash:     %s\n", g.Hash)
	fmt.Printf("Icon:     %d bytes\n", len(g.Icon))
	fmt.Printf("Settings: smoothing=%.1f normals=%t tangents=%t\n",
		g.Settings.SmoothingAngle, g.Settings.CalculateNormals, g.Settings.CalculateTangents)

	group := g.LODGroup(0)
	fmt.Printf("\nGroup %q: %d LODs\n", group.Name, len(group.LODs))
	for i, lod := range group.LODs {
		fmt.Printf("  LOD %d %q threshold=%.2f vertices=%d\n", i, lod.Name, lod.Threshold, lod.VertexCount())
		for _, m := range lod.Meshes {
			fmt.Printf("    %-24s verts=%-6d indices=%-6d idx=%db elem=%db %s %s\n",
				m.Name, m.VertexCount, m.IndexCount, m.IndexSize, m.ElementSize, m.ElementsType, m.Topology)
		}
	}
	return nil
}

func cmdList(args []string) error {
	if len(args) < 1 {
		return usage("list <dir>")
	}
	dir := args[0]

	cache, err := assets.OpenInfoCache(dir)
	if errors.Is(err, assets.ErrCorruptCache) {
		logFailure("rebuilding asset info cache", err)
		if err := os.Remove(assets.CachePath(dir)); err != nil {
			return err
		}
		cache, err = assets.OpenInfoCache(dir)
	}
	if err != nil {
		return err
	}
	defer cache.Close()

	reg := assets.NewRegistry()
	n, scanErr := reg.ScanCached(dir, cache)
	if scanErr != nil {
		logFailure("some assets could not be read", scanErr)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}
	for _, info := range reg.All() {
		rel, err := filepath.Rel(absDir, info.FullPath)
		if err != nil {
			rel = info.FullPath
		}
		fmt.Printf("%-8s %s  %.12s  icon=%-5d %s\n", info.Type, info.ID, info.Hash, len(info.Icon), rel)
	}
	fmt.Printf("\n%d assets\n", n)
	return nil
}

func cmdPack(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return usage("pack <file.asset> [out.bin]")
	}
	out := strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".bin"
	if len(args) > 1 {
		out = args[1]
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	if err := p.PackTo(args[0], out); err != nil {
		return err
	}
	fmt.Printf("Packed %s -> %s\n", args[0], out)
	return nil
}

func cmdInspectPack(args []string) error {
	if len(args) < 1 {
		return usage("inspect-pack <file.bin>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	pack, err := formats.ParseEnginePack(data)
	if err != nil {
		return err
	}

	fmt.Printf("Pack: %s (%d bytes, %d LODs)\n", args[0], len(data), len(pack.LODs))
	for i, lod := range pack.LODs {
		fmt.Printf("  LOD %d threshold=%.2f submeshBytes=%d submeshes=%d\n", i, lod.Threshold, lod.ByteSize, len(lod.Submeshes))
		for j, sm := range lod.Submeshes {
			fmt.Printf("    #%d verts=%d indices=%d idx=%db elem=%db %s %s\n",
				j, sm.VertexCount, sm.IndexCount, sm.IndexSize(), sm.ElementSize, sm.ElementsType, sm.Topology)
		}
	}
	return nil
}

func cmdConfig(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", filepath.Join(config.ConfigDir(), "meshforge.yaml"))
		return nil
	}
	if err := cfg.SaveTo(args[0]); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", args[0])
	return nil
}
