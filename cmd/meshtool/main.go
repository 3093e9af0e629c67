// meshtool is a CLI for importing, inspecting, and packing geometry assets.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/meshforge/internal/config"
	"github.com/Faultbox/meshforge/internal/logger"
	"github.com/Faultbox/meshforge/internal/pipeline"
)

func main() {
	// Global flags come before the command: meshtool -debug import chair.raw
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	command := args[0]
	rest := args[1:]

	var cmdErr error
	switch command {
	case "import":
		cmdErr = cmdImport(cfg, rest)
	case "batch":
		cmdErr = cmdBatch(cfg, rest)
	case "info":
		cmdErr = cmdInfo(cfg, rest)
	case "list", "ls":
		cmdErr = cmdList(rest)
	case "pack":
		cmdErr = cmdPack(cfg, rest)
	case "inspect-pack":
		cmdErr = cmdInspectPack(rest)
	case "config":
		cmdErr = cmdConfig(cfg, rest)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		cmdErr = errUsage
	}

	logger.Sync()
	if cmdErr != nil {
		if cmdErr != errUsage {
			fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshtool - geometry asset pipeline utility

Usage:
  meshtool [global options] <command> [options]

Commands:
  import <scene.raw> [outdir]       Import a raw scene into .asset files
  batch [-j N] <outdir> <raw...>    Import many raw scenes in parallel
  info <file.asset>                 Show asset header and LOD layout
  list <dir>                        List assets under a directory
  pack <file.asset> [out.bin]       Build the engine pack for an asset
  inspect-pack <file.bin>           Show the layout of an engine pack
  config [path]                     Write the effective config to a file

Global options:
  -config <path>   Config file (.yaml or .toml)
  -out <dir>       Output directory for imports
  -legacy          Write unversioned geometry payloads
  -hash <name>     Content hash: sha256 or blake2b
  -icon-size <n>   Icon size in pixels
  -no-icon         Skip icon generation
  -workers <n>     Batch import workers
  -debug           Enable debug logging

Examples:
  meshtool import models/chair.raw assets/props
  meshtool -workers 8 batch assets models/*.raw
  meshtool pack assets/props/chair.asset build/chair.bin`)
}

func newPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	return pipeline.New(cfg, pipeline.WithLogger(logger.Named("pipeline")))
}

func logFailure(msg string, err error) {
	logger.Error(msg, zap.Error(err))
}
