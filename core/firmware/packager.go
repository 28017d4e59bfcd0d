package firmware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	corelogger "github.com/rapidreach/rrops/core/logger"
)

var (
	// ErrNoBuildDir means the build directory does not exist.
	ErrNoBuildDir = errors.New("build directory not found")
	// ErrNoBoards means the build directory holds no board builds.
	ErrNoBoards = errors.New("no board builds found")
	// ErrNoVersionFile means the version file does not exist.
	ErrNoVersionFile = errors.New("version file not found")
	// ErrNothingPrepared means no board had a signed image.
	ErrNothingPrepared = errors.New("no firmware binaries were prepared")
)

// Artifact is one staged update file.
type Artifact struct {
	Board    string `json:"board"`
	Source   string `json:"source"`
	File     string `json:"file"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256,omitempty"`
	BLAKE3   string `json:"blake3,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Result describes a packaging run.
type Result struct {
	Version   Version
	OutputDir string
	Artifacts []Artifact
	// Skipped lists boards without a signed image.
	Skipped  []string
	Manifest string
	Bundle   string
}

// Packager stages signed images from every board build.
type Packager struct {
	cfg Config
	out io.Writer
	log corelogger.Logger
}

// NewPackager returns a packager for cfg. Progress lines go to out.
func NewPackager(cfg Config, out io.Writer, log corelogger.Logger) *Packager {
	cfg.SetDefaults()
	if out == nil {
		out = io.Discard
	}
	if log == nil {
		log = corelogger.NopLogger{}
	}
	return &Packager{cfg: cfg, out: out, log: log}
}

func (p *Packager) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Package copies each board's signed image to
// <output>/<board>_<product>_<version>.bin. Boards are processed in name
// order; a board without an image is reported and skipped.
func (p *Packager) Package(ctx context.Context) (Result, error) {
	boards, err := p.boards()
	if err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(p.cfg.VersionFile); err != nil {
		p.printf("❌ VERSION file not found.\n")
		return Result{}, fmt.Errorf("%w: %s", ErrNoVersionFile, p.cfg.VersionFile)
	}
	version, err := ReadVersionFile(p.cfg.VersionFile)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	res := Result{Version: version, OutputDir: p.cfg.OutputDir}
	for _, board := range boards {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		src, fallback, ok := p.locate(board)
		if !ok {
			p.printf("❌ %s not found for board '%s'.\n", p.cfg.Binary, board)
			res.Skipped = append(res.Skipped, board)
			continue
		}
		if fallback {
			p.printf("⚠️ '%s' folder not found in %s, falling back to 'zephyr'\n", p.cfg.Product, board)
		}
		name := fmt.Sprintf("%s_%s_%s.bin", board, p.cfg.Product, version)
		dst := filepath.Join(p.cfg.OutputDir, name)
		size, err := copyFile(src, dst)
		if err != nil {
			return res, fmt.Errorf("stage %s: %w", board, err)
		}
		p.log.Debugw("staged firmware", map[string]any{"board": board, "source": src, "file": name, "size": size})
		res.Artifacts = append(res.Artifacts, Artifact{Board: board, Source: src, File: name, Size: size, Fallback: fallback})
	}

	if len(res.Artifacts) == 0 {
		p.printf("❌ No firmware binaries were prepared.\n")
		return res, ErrNothingPrepared
	}

	if p.cfg.Manifest || p.cfg.Bundle {
		if err := digestAll(ctx, p.cfg.OutputDir, res.Artifacts, p.cfg.Workers); err != nil {
			return res, err
		}
	}
	if p.cfg.Manifest {
		path, err := writeManifest(p.cfg.OutputDir, version, res.Artifacts)
		if err != nil {
			return res, err
		}
		res.Manifest = path
	}
	if p.cfg.Bundle {
		name := fmt.Sprintf("%s_%s.tar.zst", p.cfg.Product, version)
		files := make([]string, 0, len(res.Artifacts)+1)
		for _, a := range res.Artifacts {
			files = append(files, a.File)
		}
		if res.Manifest != "" {
			files = append(files, filepath.Base(res.Manifest))
		}
		path := filepath.Join(p.cfg.OutputDir, name)
		if err := writeBundle(path, p.cfg.OutputDir, files); err != nil {
			return res, err
		}
		res.Bundle = path
	}

	p.printf("\n✅ Firmware update files prepared successfully. They are located in:\n%s\n\n", p.cfg.OutputDir)
	for _, a := range res.Artifacts {
		p.printf("➡️  %s\n\n", a.File)
	}
	return res, nil
}

func (p *Packager) boards() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.BuildDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.printf("❌ The build directory was not found.\n")
			return nil, fmt.Errorf("%w: %s", ErrNoBuildDir, p.cfg.BuildDir)
		}
		return nil, fmt.Errorf("read build dir: %w", err)
	}
	var boards []string
	for _, e := range entries {
		if e.IsDir() {
			boards = append(boards, e.Name())
		}
	}
	if len(boards) == 0 {
		p.printf("❌ No board builds found in the build directory.\n")
		return nil, fmt.Errorf("%w in %s", ErrNoBoards, p.cfg.BuildDir)
	}
	return boards, nil
}

// locate prefers the sysbuild application image and falls back to a plain
// zephyr build.
func (p *Packager) locate(board string) (path string, fallback, ok bool) {
	primary := filepath.Join(p.cfg.BuildDir, board, p.cfg.Product, "zephyr", p.cfg.Binary)
	if isFile(primary) {
		return primary, false, true
	}
	plain := filepath.Join(p.cfg.BuildDir, board, "zephyr", p.cfg.Binary)
	if isFile(plain) {
		return plain, true, true
	}
	return "", false, false
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// copyFile copies src to dst keeping permission bits and modification time.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()
	st, err := in.Stat()
	if err != nil {
		return 0, err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if err := os.Chmod(dst, st.Mode().Perm()); err != nil {
		return n, err
	}
	return n, os.Chtimes(dst, st.ModTime(), st.ModTime())
}
