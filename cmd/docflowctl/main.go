// docflowctl is the operator CLI: create jobs, ingest files into them, check
// status, export results, cancel or delete jobs. The daemon (docflowd) picks
// ingested files up from the shared store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"docflow/constants"
	"docflow/internal/blob"
	"docflow/internal/common"
	"docflow/internal/export"
	"docflow/internal/pipeline"
	"docflow/internal/repository"
)

const usage = `usage: docflowctl <command> [flags]

commands:
  create   create a job (-mode, -schema, -enrich)
  ingest   upload files into a job (-job, file...)
  status   print a job and its files (-job)
  export   write a job's results as XLSX (-job, -out)
  cancel   cancel a job (-job)
  delete   delete a job and its files (-job)
`

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		fatal("open store: %v", err)
	}
	defer store.Close()

	jobs := repository.NewJobRepository(store, logger)
	files := repository.NewJobFileRepository(store, logger)

	switch os.Args[1] {
	case "create":
		runCreate(ctx, jobs, os.Args[2:])
	case "ingest":
		runIngest(ctx, cfg, files, os.Args[2:])
	case "status":
		runStatus(ctx, jobs, files, os.Args[2:])
	case "export":
		runExport(ctx, jobs, files, os.Args[2:], logger)
	case "cancel":
		id := jobIDArg(os.Args[2:], "cancel")
		if err := jobs.Cancel(ctx, id); err != nil {
			fatal("cancel job: %v", err)
		}
		fmt.Printf("job %s cancelled\n", id)
	case "delete":
		id := jobIDArg(os.Args[2:], "delete")
		if err := jobs.Delete(ctx, id); err != nil {
			fatal("delete job: %v", err)
		}
		fmt.Printf("job %s deleted\n", id)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runCreate(ctx context.Context, jobs repository.JobRepository, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	mode := fs.String("mode", "full", "extraction mode: "+strings.Join(constants.ExtractionModes, ", "))
	schemaPath := fs.String("schema", "", "path to a JSON-Schema file for processing results")
	enrich := fs.Bool("enrich", false, "run the enrichment chain on results")
	_ = fs.Parse(args)

	valid := false
	for _, m := range constants.ExtractionModes {
		if m == *mode {
			valid = true
			break
		}
	}
	if !valid {
		fatal("unknown extraction mode %q", *mode)
	}

	var schema json.RawMessage
	if *schemaPath != "" {
		data, err := os.ReadFile(*schemaPath)
		if err != nil {
			fatal("read schema: %v", err)
		}
		if !json.Valid(data) {
			fatal("schema file %s is not valid JSON", *schemaPath)
		}
		schema = data
	}

	job, err := jobs.Create(ctx, repository.CreateJobParams{
		ExtractionMode:    *mode,
		ProcessingSchema:  schema,
		EnrichmentEnabled: *enrich,
	})
	if err != nil {
		fatal("create job: %v", err)
	}
	fmt.Println(job.ID)
}

func runIngest(ctx context.Context, cfg *common.Config, files repository.JobFileRepository, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	jobFlag := fs.String("job", "", "job id")
	_ = fs.Parse(args)

	jobID := parseJobID(*jobFlag)
	if fs.NArg() == 0 {
		fatal("ingest: no files given")
	}

	blobs, err := blob.NewFSStore(cfg.BlobDir)
	if err != nil {
		fatal("open blob store: %v", err)
	}
	upload := pipeline.NewUploadStage(files, blobs, slog.Default())

	exitCode := 0
	for _, path := range fs.Args() {
		if !constants.IsAllowedExt(filepath.Ext(path)) {
			fmt.Fprintf(os.Stderr, "skip %s: extension not allowed\n", path)
			exitCode = 1
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", path, err)
			exitCode = 1
			continue
		}
		file, err := upload.Run(ctx, jobID, filepath.Base(path), data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "upload %s failed: %v\n", path, err)
			exitCode = 1
			continue
		}
		fmt.Printf("%s\t%s\t%s\n", file.ID, file.UploadStatus, file.Filename)
	}
	os.Exit(exitCode)
}

func runStatus(ctx context.Context, jobs repository.JobRepository, files repository.JobFileRepository, args []string) {
	id := jobIDArg(args, "status")

	job, err := jobs.GetByID(ctx, id)
	if err != nil {
		fatal("get job: %v", err)
	}
	fmt.Printf("job %s\tstatus=%s\tmode=%s\tenrich=%t\n", job.ID, job.Status, job.ExtractionMode, job.EnrichmentEnabled)
	if job.Summary != nil {
		fmt.Printf("files=%d\textraction=%v\tprocessing=%v\n", job.Summary.Total, job.Summary.Extraction, job.Summary.Processing)
	}

	list, err := files.ListByJob(ctx, id)
	if err != nil {
		fatal("list files: %v", err)
	}
	for _, f := range list {
		review := ""
		if f.NeedsReview {
			review = "\tREVIEW"
		}
		fmt.Printf("  %s\t%s\tupload=%s retries=%d\textract=%s\tprocess=%s%s\n",
			f.ID, f.Filename, f.UploadStatus, f.RetryCount, f.ExtractionStatus, f.ProcessingStatus, review)
	}
}

func runExport(ctx context.Context, jobs repository.JobRepository, files repository.JobFileRepository, args []string, logger *slog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	jobFlag := fs.String("job", "", "job id")
	out := fs.String("out", "", "output path (default <job-id>.xlsx)")
	_ = fs.Parse(args)

	jobID := parseJobID(*jobFlag)
	path := *out
	if path == "" {
		path = jobID.String() + ".xlsx"
	}

	data, err := export.NewService(jobs, files, logger).ExportJobXLSX(ctx, jobID)
	if err != nil {
		fatal("export job: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fatal("write %s: %v", path, err)
	}
	fmt.Printf("wrote %s\n", path)
}

func jobIDArg(args []string, name string) uuid.UUID {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	jobFlag := fs.String("job", "", "job id")
	_ = fs.Parse(args)
	return parseJobID(*jobFlag)
}

func parseJobID(s string) uuid.UUID {
	if s == "" {
		fatal("-job is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		fatal("invalid job id %q: %v", s, err)
	}
	return id
}

func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repository.Store, error) {
	if cfg.Database.DSN != "" {
		return repository.OpenPostgres(ctx, cfg.Database, logger)
	}
	return repository.OpenSQLite(ctx, cfg.Database.Path, logger)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
