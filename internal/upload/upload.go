// Package upload copies local files to object storage through the aws CLI,
// skipping files whose key already exists at the destination.
//
// The check-then-upload sequence is not atomic with respect to concurrent
// writers; a single operator-run batch is the assumed usage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/wflyer/echopipe/internal/execx"
)

// CLI is the cloud storage command the uploader shells out to.
const CLI = "aws"

// ErrBadDestination means the destination did not look like an s3:// URI.
var ErrBadDestination = errors.New("upload: destination must look like s3://BUCKET[/PREFIX]")

// Destination is a parsed s3://BUCKET/PREFIX target.
type Destination struct {
	Bucket string
	Prefix string // no leading or trailing slash; may be empty
}

// ParseDestination validates and splits an object-storage URI. It fails
// before any network call is possible.
func ParseDestination(uri string) (Destination, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok || rest == "" {
		return Destination{}, fmt.Errorf("%w: got %q", ErrBadDestination, uri)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Destination{}, fmt.Errorf("%w: got %q", ErrBadDestination, uri)
	}
	return Destination{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// Key returns the object key for a local file's basename.
func (d Destination) Key(base string) string {
	return path.Join(d.Prefix, base)
}

// URI renders the full s3:// URI for a key.
func (d Destination) URI(key string) string {
	return "s3://" + d.Bucket + "/" + key
}

// Stats counts per-file outcomes of an upload run.
type Stats struct {
	Uploaded int // uploaded and verified
	Skipped  int // key already existed, nothing transferred
	Invalid  int // not a regular file
	Failed   int // upload or verification failed
}

// OK reports whether the run may exit zero: every file either uploaded and
// verified or was skipped because it already existed.
func (s Stats) OK() bool { return s.Invalid == 0 && s.Failed == 0 }

// Uploader transfers files sequentially through the cloud CLI.
type Uploader struct {
	Runner *execx.Runner
	Dest   Destination

	// Region is passed to every storage call when set.
	Region string

	// Force uploads even when the key already exists.
	Force bool

	// Progress draws a per-file progress bar when set.
	Progress bool

	// Out receives operator-facing messages; defaults to os.Stdout.
	Out io.Writer
}

func (u *Uploader) out() io.Writer {
	if u.Out != nil {
		return u.Out
	}
	return os.Stdout
}

// CheckCLI reports whether the cloud CLI is installed.
func (u *Uploader) CheckCLI() bool {
	return u.Runner.Available(CLI)
}

// Login performs the single-sign-on step. A failure is logged and ignored:
// long-lived credentials configured outside SSO still work.
func (u *Uploader) Login(ctx context.Context) {
	if err := u.Runner.Run(ctx, CLI, "sso", "login"); err != nil {
		slog.Warn("sso login failed, continuing with existing credentials", "error", err)
	}
}

// storageArgs appends the region option to an s3 subcommand line.
func (u *Uploader) storageArgs(args ...string) []string {
	if u.Region != "" {
		args = append(args, "--region", u.Region)
	}
	return args
}

// Exists reports whether the key is already present at the destination.
// The CLI exits nonzero and prints nothing when there is no match.
func (u *Uploader) Exists(ctx context.Context, key string) bool {
	output, err := u.Runner.Output(ctx, CLI, u.storageArgs("s3", "ls", u.Dest.URI(key))...)
	return err == nil && len(strings.TrimSpace(string(output))) > 0
}

// put copies one local file to its key.
func (u *Uploader) put(ctx context.Context, localPath, key string) error {
	return u.Runner.Run(ctx, CLI, u.storageArgs("s3", "cp", localPath, u.Dest.URI(key))...)
}

// UploadAll processes every file in order: validate, check, upload, verify.
// A failing file never stops the remaining ones.
func (u *Uploader) UploadAll(ctx context.Context, files []string) Stats {
	var stats Stats

	var bar *progressbar.ProgressBar
	if u.Progress {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("uploading"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(u.out()),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(u.out()) }),
		)
	}

	for _, file := range files {
		u.uploadOne(ctx, file, &stats)
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	fmt.Fprintln(u.out(), "Summary:")
	fmt.Fprintf(u.out(), "  Uploaded: %d\n", stats.Uploaded)
	fmt.Fprintf(u.out(), "  Skipped:  %d\n", stats.Skipped)
	fmt.Fprintf(u.out(), "  Failed:   %d\n", stats.Failed+stats.Invalid)
	return stats
}

func (u *Uploader) uploadOne(ctx context.Context, file string, stats *Stats) {
	info, err := os.Stat(file)
	if err != nil || !info.Mode().IsRegular() {
		fmt.Fprintf(u.out(), "✗ Not a file or not found: %s\n", file)
		stats.Invalid++
		return
	}

	key := u.Dest.Key(filepath.Base(file))

	if !u.Force && u.Exists(ctx, key) {
		fmt.Fprintf(u.out(), "○ Skipped (exists): %s\n", filepath.Base(file))
		stats.Skipped++
		return
	}

	if err := u.put(ctx, file, key); err != nil {
		fmt.Fprintf(u.out(), "✗ Error uploading %s: %v\n", filepath.Base(file), err)
		stats.Failed++
		return
	}

	// Re-check so a transfer the CLI reported as fine but never landed is
	// still caught.
	if !u.Exists(ctx, key) {
		fmt.Fprintf(u.out(), "✗ Verification failed: %s not found at %s\n", filepath.Base(file), u.Dest.URI(key))
		stats.Failed++
		return
	}

	fmt.Fprintf(u.out(), "✓ Uploaded: %s -> %s\n", filepath.Base(file), u.Dest.URI(key))
	stats.Uploaded++
}
