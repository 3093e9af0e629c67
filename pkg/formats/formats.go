// Package formats reads and writes the geometry file formats of the content
// pipeline: raw importer scenes, .asset containers, and engine packs.
package formats
