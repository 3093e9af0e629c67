package formats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/meshforge/pkg/geometry"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"crate", "crate"},
		{"a:b?c", "a_b_c"},
		{`x<y>z"w/v\u|t*`, "x_y_z_w_v_u_t_"},
		{"tab\there", "tab_here"},
		{"ünïcode", "ünïcode"},
		{"a\xffb", "a_b"},
		{"bad\xe2\x82tail", "bad__tail"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := SanitizeFileName(tt.in)
			if got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if len(got) != len(tt.in) {
				t.Errorf("length changed: %d -> %d", len(tt.in), len(got))
			}
		})
	}
}

func TestAssetFileName(t *testing.T) {
	single := &geometry.LODGroup{LODs: []*geometry.MeshLOD{{Name: "lod:0", Meshes: []*geometry.Mesh{{Name: "m"}}}}}
	multi := &geometry.LODGroup{LODs: []*geometry.MeshLOD{{Name: "lod0", Meshes: []*geometry.Mesh{{Name: "seat?"}, {Name: "legs"}}}}}

	tests := []struct {
		name     string
		base     string
		group    *geometry.LODGroup
		multiple bool
		want     string
	}{
		{"single group", "chair", single, false, "chair.asset"},
		{"extension kept once", "chair.asset", single, false, "chair.asset"},
		{"label from LOD", "chair", single, true, "chair_lod_0.asset"},
		{"label from submesh", "chair", multi, true, "chair_seat_.asset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssetFileName(tt.base, tt.group, tt.multiple); got != tt.want {
				t.Errorf("AssetFileName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAssetFileNames(t *testing.T) {
	group := func(label string) *geometry.LODGroup {
		return &geometry.LODGroup{LODs: []*geometry.MeshLOD{{Name: label, Meshes: []*geometry.Mesh{{Name: "m"}}}}}
	}

	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{"single", []string{"LOD0"}, []string{"props.asset"}},
		{"distinct", []string{"rock", "tree"}, []string{"props_rock.asset", "props_tree.asset"}},
		{"colliding", []string{"LOD0", "LOD0", "LOD0"}, []string{"props_LOD0.asset", "props_LOD0_1.asset", "props_LOD0_2.asset"}},
		{"case only", []string{"lod0", "LOD0"}, []string{"props_lod0.asset", "props_LOD0_1.asset"}},
		{"suffix taken by label", []string{"LOD0_1", "LOD0", "LOD0"}, []string{"props_LOD0_1.asset", "props_LOD0.asset", "props_LOD0_2.asset"}},
		{"sanitized collision", []string{"a:b", "a?b"}, []string{"props_a_b.asset", "props_a_b_1.asset"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := make([]*geometry.LODGroup, len(tt.labels))
			for i, l := range tt.labels {
				groups[i] = group(l)
			}
			got := AssetFileNames("props", groups)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d names, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("name %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "crate.asset")

	if err := WriteFileAtomic(path, []byte("first"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteFileAtomic_FailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	// The target is an existing directory, so the final rename fails.
	path := filepath.Join(dir, "target")
	if err := os.MkdirAll(filepath.Join(path, "child"), 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := WriteFileAtomic(path, []byte("data"), 0644); err == nil {
		t.Fatal("expected error renaming over a directory")
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
