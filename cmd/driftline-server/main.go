// Package main implements the driftline-server binary, an HTTP API in
// front of the planning pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/driftline/driftline/internal/app"
	"github.com/driftline/driftline/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		httpAddr    string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Driftline planning server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: driftline-server [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  driftline-server --data-dir /data/driftline\n")
		fmt.Fprintf(os.Stderr, "  driftline-server --config /etc/driftline/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DRIFTLINE_HTTP_ADDR     HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  DRIFTLINE_DATA_DIR      Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  DRIFTLINE_STORAGE_TYPE  Snapshot storage type (local, s3)\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("driftline-server version %s (commit: %s)\n", version, commit)
		return
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
		cfg.Storage.Path = "" // re-derive under the new data dir
		cfg.Resolve()
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
