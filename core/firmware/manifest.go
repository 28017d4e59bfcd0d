package firmware

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"
)

// ManifestName is the file name of the staged manifest.
const ManifestName = "manifest.json"

// Manifest lists the staged files of one release.
type Manifest struct {
	Version   string     `json:"version"`
	Generated time.Time  `json:"generated"`
	Artifacts []Artifact `json:"artifacts"`
}

// digestAll fills SHA256 and BLAKE3 for every artifact, hashing up to workers
// files at once.
func digestAll(ctx context.Context, dir string, arts []Artifact, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range arts {
		a := &arts[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum256, sumB3, err := digestFile(filepath.Join(dir, a.File))
			if err != nil {
				return fmt.Errorf("digest %s: %w", a.File, err)
			}
			a.SHA256, a.BLAKE3 = sum256, sumB3
			return nil
		})
	}
	return g.Wait()
}

func digestFile(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = f.Close() }()
	hs := sha256.New()
	hb := blake3.New()
	if _, err := io.Copy(io.MultiWriter(hs, hb), f); err != nil {
		return "", "", err
	}
	return hex.EncodeToString(hs.Sum(nil)), hex.EncodeToString(hb.Sum(nil)), nil
}

func writeManifest(dir string, v Version, arts []Artifact) (string, error) {
	m := Manifest{Version: v.String(), Generated: time.Now().UTC(), Artifacts: arts}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest written by the packager.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// writeBundle packs files from dir into a zstd-compressed tarball at path.
func writeBundle(path, dir string, files []string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)
	for _, name := range files {
		if err := addToTar(tw, filepath.Join(dir, name), name); err != nil {
			_ = tw.Close()
			_ = zw.Close()
			return fmt.Errorf("bundle %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

func addToTar(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(st, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
