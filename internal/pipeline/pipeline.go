// Package pipeline sequences per-file processing stages.
//
// A stage maps every input file (or store directory) to one output path and
// applies an operation to each pair. Failures are counted per file and never
// abort the remaining inputs, matching how this tooling is run at sea: one
// corrupt segment must not sink a whole overnight batch.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wflyer/echopipe/internal/discover"
)

// Job pairs one input with the output path its stage will write.
type Job struct {
	Input  string
	Output string
}

// Stats summarizes a stage run.
type Stats struct {
	Processed int // operations that completed
	Skipped   int // outputs that already existed
	Failed    int // operations that returned an error
}

// Failed reports whether any per-file operation failed.
func (s Stats) AnyFailed() bool { return s.Failed > 0 }

// OutputPath maps an input to its stage output: saveDir resolved relative to
// the input's parent directory (or used as-is when absolute), with the input's
// stem and the stage's extension. Mirrors the deployment layout where raw/,
// converted/, and sv/ are siblings.
func OutputPath(input, saveDir, ext string) string {
	dir := saveDir
	if !filepath.IsAbs(saveDir) {
		dir = filepath.Join(filepath.Dir(input), saveDir)
	}
	return filepath.Clean(filepath.Join(dir, discover.Stem(input)+ext))
}

// MVBSOutputPath maps an Sv store name to its MVBS output under outDir,
// rewriting the "_Sv" name component so "seg_Sv.zarr" becomes
// "seg_MVBS.zarr".
func MVBSOutputPath(svPath, outDir string) string {
	name := filepath.Base(svPath)
	if strings.Contains(name, "_Sv.zarr") {
		name = strings.Replace(name, "_Sv.zarr", "_MVBS.zarr", 1)
	} else {
		name = discover.Stem(svPath) + "_MVBS.zarr"
	}
	dir := outDir
	if !filepath.IsAbs(outDir) {
		dir = filepath.Join(filepath.Dir(svPath), outDir)
	}
	return filepath.Clean(filepath.Join(dir, name))
}

// MapJobs builds one Job per input using OutputPath.
func MapJobs(inputs []string, saveDir, ext string) []Job {
	jobs := make([]Job, 0, len(inputs))
	for _, in := range inputs {
		jobs = append(jobs, Job{Input: in, Output: OutputPath(in, saveDir, ext)})
	}
	return jobs
}

// FilterMissing keeps only the jobs whose output does not exist yet,
// logging each skip. Used by --skip-existing and --missing-only modes.
func FilterMissing(jobs []Job) (kept []Job, skipped int) {
	for _, job := range jobs {
		if _, err := os.Stat(job.Output); err == nil {
			slog.Info("skipping, output already exists", "output", job.Output)
			skipped++
			continue
		}
		kept = append(kept, job)
	}
	return kept, skipped
}

// Runner fans a stage operation out over jobs with a bounded worker pool.
type Runner struct {
	// Workers bounds concurrent operations; values below 1 mean sequential.
	Workers int
}

// Run applies op to every job. Each job's output directory is created first.
// A failed job is logged and counted; it does not cancel the others. Context
// cancellation stops unstarted jobs.
func (r *Runner) Run(ctx context.Context, jobs []Job, op func(ctx context.Context, job Job) error) Stats {
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu    sync.Mutex
		stats Stats
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, job := range jobs {
		job := job
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
				slog.Error("cannot create output directory", "output", job.Output, "error", err)
				mu.Lock()
				stats.Failed++
				mu.Unlock()
				return nil
			}
			if err := op(ctx, job); err != nil {
				slog.Error("stage failed", "input", job.Input, "error", err)
				mu.Lock()
				stats.Failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			stats.Processed++
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only observes ctx.
	_ = g.Wait()
	return stats
}
