// Package tools runs the external programs that fetch, transcode and
// archive media.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	errs "e6pools/pkg/errors"
	"e6pools/pkg/logger"
)

const (
	DefaultCurl     = "curl"
	DefaultCWebP    = "cwebp"
	DefaultGIF2WebP = "gif2webp"
	DefaultSevenZip = "7z"
	DefaultQuality  = 75
)

// Runner executes one external command and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec. Stderr is captured and included in
// the returned error.
type ExecRunner struct {
	Logger logger.Logger
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	if r.Logger != nil {
		r.Logger.DebugWithFields("exec", map[string]interface{}{
			"cmd":  name,
			"args": strings.Join(args, " "),
		})
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return errs.Wrapf(errs.ErrorTypeProcess, name, err, "command failed")
		}
		return errs.Wrapf(errs.ErrorTypeProcess, name, err, "%s", msg)
	}
	return nil
}

// FetchArgs is the curl argument vector for downloading url to out.
func FetchArgs(userAgent, out, url string) []string {
	return []string{"-L", "-s", "-S", "--fail", "-A", userAgent, "-o", out, url}
}

// EncodeArgs is the cwebp/gif2webp argument vector.
func EncodeArgs(quality int, in, out string) []string {
	return []string{"-q", strconv.Itoa(quality), "-m", "6", "-mt", "-o", out, in}
}

// ArchiveArgs is the 7z argument vector for zipping dir into dir.zip. The
// source directory's files are deleted as they are archived.
func ArchiveArgs(dir string) []string {
	return []string{"a", "-tzip", "-sdel", "-mx=9", dir + ".zip", dir}
}

// Fetcher downloads a URL to a local path.
type Fetcher struct {
	Runner    Runner
	Program   string
	UserAgent string
}

// Fetch downloads url into out.
func (f Fetcher) Fetch(ctx context.Context, url, out string) error {
	program := f.Program
	if program == "" {
		program = DefaultCurl
	}
	if err := f.Runner.Run(ctx, program, FetchArgs(f.UserAgent, out, url)...); err != nil {
		os.Remove(out)
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	return nil
}

// Transcoder converts still and animated images to webp.
type Transcoder struct {
	Runner   Runner
	CWebP    string
	GIF2WebP string
	Quality  int
}

// Transcode encodes in to out with cwebp, falling back to gif2webp when
// cwebp fails. A partial output file is removed on failure.
func (t Transcoder) Transcode(ctx context.Context, in, out string) error {
	quality := t.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}
	cwebp, gif2webp := t.CWebP, t.GIF2WebP
	if cwebp == "" {
		cwebp = DefaultCWebP
	}
	if gif2webp == "" {
		gif2webp = DefaultGIF2WebP
	}

	args := EncodeArgs(quality, in, out)
	first := t.Runner.Run(ctx, cwebp, args...)
	if first == nil {
		return nil
	}
	if ctx.Err() != nil {
		os.Remove(out)
		return ctx.Err()
	}

	if err := t.Runner.Run(ctx, gif2webp, args...); err != nil {
		os.Remove(out)
		return fmt.Errorf("transcode %s: %w", in, err)
	}
	return nil
}

// Archiver packs directories into zip files.
type Archiver struct {
	Runner  Runner
	Program string
}

// Archive creates dir.zip from dir.
func (a Archiver) Archive(ctx context.Context, dir string) error {
	program := a.Program
	if program == "" {
		program = DefaultSevenZip
	}
	if err := a.Runner.Run(ctx, program, ArchiveArgs(dir)...); err != nil {
		return fmt.Errorf("archive %s: %w", dir, err)
	}
	return nil
}
