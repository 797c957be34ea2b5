// Package main implements the driftline CLI: it diffs two schema
// snapshots and prints the compiled migration plan. It never executes SQL.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/history"
	"github.com/driftline/driftline/internal/plan"
	"github.com/driftline/driftline/internal/snapshot"
	"github.com/driftline/driftline/internal/storage"
	"github.com/driftline/driftline/pkg/types"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile   string
		currentPath  string
		targetPath   string
		planName     string
		rollback     bool
		parallel     bool
		jsonOut      bool
		saveSnapshot string
		showHistory  bool
		showVersion  bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&currentPath, "current", "", "Current schema: SQL file, or snapshot ref env/name")
	flag.StringVar(&targetPath, "target", "", "Target schema: SQL file, or snapshot ref env/name")
	flag.StringVar(&planName, "plan-name", "", "Name for the compiled plan")
	flag.BoolVar(&rollback, "rollback", false, "Also derive and print the rollback plan")
	flag.BoolVar(&parallel, "parallel", false, "Mark independent phases as parallelizable")
	flag.BoolVar(&jsonOut, "json", false, "Print the plan as JSON instead of text")
	flag.StringVar(&saveSnapshot, "save-snapshot", "", "Store the target schema as snapshot env/name")
	flag.BoolVar(&showHistory, "history", false, "Print recent builds and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Driftline - schema drift migration planner\n\n")
		fmt.Fprintf(os.Stderr, "Usage: driftline [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  driftline --current schema_prod.sql --target schema.sql\n")
		fmt.Fprintf(os.Stderr, "  driftline --current prod/latest --target schema.sql --rollback\n")
		fmt.Fprintf(os.Stderr, "  driftline --target schema.sql --save-snapshot staging/v42\n")
		fmt.Fprintf(os.Stderr, "  driftline --history\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DRIFTLINE_DATA_DIR      Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  DRIFTLINE_STORAGE_TYPE  Snapshot storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  DRIFTLINE_S3_BUCKET     S3 bucket for snapshot storage\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("driftline version %s (commit: %s)\n", version, commit)
		return
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to prepare data directory: %v", err)
	}

	ctx := context.Background()
	cli, err := newCLI(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer cli.catalog.Close()

	if showHistory {
		if err := cli.printHistory(ctx); err != nil {
			log.Fatalf("Failed to read history: %v", err)
		}
		return
	}

	if targetPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	targetSQL, err := cli.readSchema(ctx, targetPath)
	if err != nil {
		log.Fatalf("Failed to read target schema: %v", err)
	}
	currentSQL := ""
	if currentPath != "" {
		currentSQL, err = cli.readSchema(ctx, currentPath)
		if err != nil {
			log.Fatalf("Failed to read current schema: %v", err)
		}
	}

	if saveSnapshot != "" {
		if err := cli.saveSnapshot(ctx, saveSnapshot, targetSQL); err != nil {
			log.Fatalf("Failed to save snapshot: %v", err)
		}
		if currentPath == "" {
			return
		}
	}

	if err := cli.runBuild(ctx, currentSQL, targetSQL, buildOptions{
		planName: planName,
		rollback: rollback,
		parallel: parallel,
		jsonOut:  jsonOut,
	}); err != nil {
		log.Fatalf("%v", err)
	}
}

type buildOptions struct {
	planName string
	rollback bool
	parallel bool
	jsonOut  bool
}

type cli struct {
	cfg     *config.Config
	store   *snapshot.Store
	catalog history.Catalog
}

func newCLI(ctx context.Context, cfg *config.Config) (*cli, error) {
	var backend storage.ObjectStorage
	switch cfg.Storage.Type {
	case "s3":
		s3store, err := storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		backend = s3store
	default:
		local, err := storage.NewLocalStorage(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		backend = local
	}

	catalog, err := history.NewCatalog(cfg.HistoryPath())
	if err != nil {
		return nil, err
	}

	return &cli{cfg: cfg, store: snapshot.NewStore(backend), catalog: catalog}, nil
}

// readSchema resolves a schema argument: an env/name snapshot ref when it
// matches one, otherwise a file path.
func (c *cli) readSchema(ctx context.Context, ref string) (string, error) {
	if env, name, ok := splitSnapshotRef(ref); ok {
		if _, err := os.Stat(ref); os.IsNotExist(err) {
			sql, _, err := c.store.Load(ctx, env, name)
			return sql, err
		}
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *cli) saveSnapshot(ctx context.Context, ref, sql string) error {
	env, name, ok := splitSnapshotRef(ref)
	if !ok {
		return fmt.Errorf("snapshot ref must be env/name, got %q", ref)
	}
	meta, err := c.store.Save(ctx, env, name, sql)
	if err != nil {
		return err
	}
	if err := c.catalog.RegisterSnapshot(ctx, &history.SnapshotRecord{
		Environment: env,
		Name:        name,
		Fingerprint: meta.Fingerprint,
		SizeBytes:   meta.Size,
		CapturedAt:  meta.CapturedAt,
	}); err != nil {
		return err
	}
	fmt.Printf("Saved snapshot %s (%d bytes, fingerprint %x)\n", ref, meta.Size, meta.Fingerprint)
	return nil
}

func (c *cli) runBuild(ctx context.Context, currentSQL, targetSQL string, opts buildOptions) error {
	p := plan.NewPipeline(plan.Options{
		PlanName:          opts.planName,
		EnableRollback:    opts.rollback,
		ParallelExecution: opts.parallel,
	})
	compiled, validation, err := p.Run(currentSQL, targetSQL)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	var rb *types.RollbackPlan
	if validation.Valid && opts.rollback {
		rb, err = p.Rollback()
		if err != nil {
			return err
		}
	}

	if _, err := c.catalog.RegisterBuild(ctx, &history.BuildRecord{
		PlanID:             compiled.ID,
		PlanName:           compiled.Name,
		State:              string(p.State()),
		CurrentFingerprint: snapshot.Fingerprint(currentSQL),
		TargetFingerprint:  snapshot.Fingerprint(targetSQL),
		StepCount:          len(compiled.Steps),
		Summary:            compiled.Summary(),
		EstimatedSeconds:   compiled.EstimatedSeconds,
	}); err != nil {
		return err
	}

	if opts.jsonOut {
		return printJSON(compiled, rb, validation, p.Diagnostics())
	}
	printPlan(compiled, validation, p.Diagnostics())
	if rb != nil {
		printRollback(rb)
	}
	if !validation.Valid {
		os.Exit(1)
	}
	return nil
}

func (c *cli) printHistory(ctx context.Context) error {
	recs, err := c.catalog.ListBuilds(ctx, 20)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No builds recorded.")
		return nil
	}
	for _, rec := range recs {
		name := rec.PlanName
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s  %-10s %-24s steps=%d safe=%d warn=%d destr=%d est=%ds\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.State, name,
			rec.StepCount, rec.Summary.Safe, rec.Summary.Warning, rec.Summary.Destructive,
			rec.EstimatedSeconds)
	}
	return nil
}

func splitSnapshotRef(ref string) (env, name string, ok bool) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func printJSON(compiled *types.ExecutionPlan, rb *types.RollbackPlan, validation plan.ValidationResult, diags []types.Diagnostic) error {
	out := struct {
		Plan        *types.ExecutionPlan  `json:"plan"`
		Rollback    *types.RollbackPlan   `json:"rollback,omitempty"`
		Validation  plan.ValidationResult `json:"validation"`
		Diagnostics []types.Diagnostic    `json:"diagnostics,omitempty"`
	}{compiled, rb, validation, diags}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printPlan(compiled *types.ExecutionPlan, validation plan.ValidationResult, diags []types.Diagnostic) {
	summary := compiled.Summary()
	fmt.Printf("Plan %s", compiled.ID)
	if compiled.Name != "" {
		fmt.Printf(" (%s)", compiled.Name)
	}
	fmt.Printf(": %d step(s), ~%ds estimated\n", len(compiled.Steps), compiled.EstimatedSeconds)
	fmt.Printf("  safe=%d warning=%d destructive=%d\n\n", summary.Safe, summary.Warning, summary.Destructive)

	for _, phase := range compiled.Phases {
		fmt.Printf("Phase: %s", phase.Category)
		if phase.Parallelizable {
			fmt.Printf(" (parallelizable)")
		}
		fmt.Println()
		for _, idx := range phase.Steps {
			step := compiled.Steps[idx]
			fmt.Printf("  %2d. %s %s\n", step.Index+1, riskMarker(step.Operation.Risk), step.Operation.Description)
			if step.Operation.Warning != "" {
				fmt.Printf("      ! %s\n", step.Operation.Warning)
			}
			if step.Operation.RequiresConfirmation {
				fmt.Printf("      ! requires explicit confirmation before execution\n")
			}
			for _, line := range strings.Split(step.Operation.SQL, "\n") {
				fmt.Printf("      %s\n", line)
			}
		}
		fmt.Println()
	}

	for _, d := range diags {
		fmt.Printf("note [%s]: %s\n", d.Stage, d.Message)
	}
	if len(validation.Warnings) > 0 {
		fmt.Println()
		for _, wmsg := range validation.Warnings {
			fmt.Printf("warning: %s\n", wmsg)
		}
	}
	if !validation.Valid {
		fmt.Println()
		for _, emsg := range validation.Errors {
			fmt.Printf("error: %s\n", emsg)
		}
		fmt.Println("\nPlan is NOT valid for execution.")
	}
}

func printRollback(rb *types.RollbackPlan) {
	fmt.Printf("Rollback plan for %s: %d step(s)\n", rb.PlanID, len(rb.Steps))
	for _, step := range rb.Steps {
		marker := riskMarker(step.Operation.Risk)
		if step.ManualIntervention {
			marker = "[MANUAL]"
		}
		fmt.Printf("  %2d. %s %s (undoes step %d)\n",
			step.Index+1, marker, step.Operation.Description, step.ForwardIndex+1)
	}
}

func riskMarker(r types.RiskLevel) string {
	switch r {
	case types.RiskDestructive:
		return "[DESTRUCTIVE]"
	case types.RiskWarning:
		return "[WARNING]"
	default:
		return "[safe]"
	}
}
