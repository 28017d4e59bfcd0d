package firmware

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

const versionFile = `VERSION_MAJOR = 1
VERSION_MINOR = 4
PATCHLEVEL = 2
VERSION_TWEAK = 0
EXTRAVERSION =
`

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion(strings.NewReader("# release\n" + versionFile + "garbage line\n"))
	require.NoError(t, err)
	assert.Equal(t, "V1.4.2", v.String())

	_, err = ParseVersion(strings.NewReader("VERSION_MAJOR = 1\n"))
	require.ErrorIs(t, err, ErrVersionIncomplete)
	assert.Contains(t, err.Error(), "VERSION_MINOR, PATCHLEVEL")
}

type tree struct {
	root, build, version, out string
}

func writeFile(t *testing.T, path, data string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o640))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func newTree(t *testing.T) tree {
	t.Helper()
	root := t.TempDir()
	tr := tree{
		root:    root,
		build:   filepath.Join(root, "build"),
		version: filepath.Join(root, "VERSION"),
		out:     filepath.Join(root, "firmware_updates"),
	}
	stamp := time.Date(2025, 2, 14, 10, 30, 0, 0, time.UTC)
	writeFile(t, filepath.Join(tr.build, "nrf5340dk", "rapidreach-fw", "zephyr", "zephyr.signed.bin"), "app-image", stamp)
	// a stale plain build next to the sysbuild image must be ignored
	writeFile(t, filepath.Join(tr.build, "nrf5340dk", "zephyr", "zephyr.signed.bin"), "stale", time.Time{})
	writeFile(t, filepath.Join(tr.build, "rr_board", "zephyr", "zephyr.signed.bin"), "plain-image", stamp)
	require.NoError(t, os.MkdirAll(filepath.Join(tr.build, "empty_board"), 0o755))
	writeFile(t, filepath.Join(tr.build, "CMakeCache.txt"), "not a board", time.Time{})
	writeFile(t, tr.version, versionFile, time.Time{})
	return tr
}

func (tr tree) config() Config {
	return Config{BuildDir: tr.build, VersionFile: tr.version, OutputDir: tr.out}
}

func TestPackage(t *testing.T) {
	tr := newTree(t)
	var out bytes.Buffer
	res, err := NewPackager(tr.config(), &out, nil).Package(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "V1.4.2", res.Version.String())
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, "nrf5340dk_rapidreach-fw_V1.4.2.bin", res.Artifacts[0].File)
	assert.False(t, res.Artifacts[0].Fallback)
	assert.Equal(t, "rr_board_rapidreach-fw_V1.4.2.bin", res.Artifacts[1].File)
	assert.True(t, res.Artifacts[1].Fallback)
	assert.Equal(t, []string{"empty_board"}, res.Skipped)
	assert.Empty(t, res.Manifest)

	data, err := os.ReadFile(filepath.Join(tr.out, res.Artifacts[0].File))
	require.NoError(t, err)
	assert.Equal(t, "app-image", string(data))

	st, err := os.Stat(filepath.Join(tr.out, res.Artifacts[1].File))
	require.NoError(t, err)
	assert.True(t, st.ModTime().Equal(time.Date(2025, 2, 14, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, os.FileMode(0o640), st.Mode().Perm())

	s := out.String()
	assert.Contains(t, s, "⚠️ 'rapidreach-fw' folder not found in rr_board, falling back to 'zephyr'")
	assert.Contains(t, s, "❌ zephyr.signed.bin not found for board 'empty_board'.")
	assert.Contains(t, s, "➡️  nrf5340dk_rapidreach-fw_V1.4.2.bin")
}

func TestPackageManifestAndBundle(t *testing.T) {
	tr := newTree(t)
	cfg := tr.config()
	cfg.Manifest = true
	cfg.Bundle = true
	res, err := NewPackager(cfg, nil, nil).Package(context.Background())
	require.NoError(t, err)

	m, err := ReadManifest(res.Manifest)
	require.NoError(t, err)
	assert.Equal(t, "V1.4.2", m.Version)
	require.Len(t, m.Artifacts, 2)
	sum := sha256.Sum256([]byte("app-image"))
	assert.Equal(t, hex.EncodeToString(sum[:]), m.Artifacts[0].SHA256)
	b3 := blake3.Sum256([]byte("plain-image"))
	assert.Equal(t, hex.EncodeToString(b3[:]), m.Artifacts[1].BLAKE3)
	assert.Equal(t, int64(len("plain-image")), m.Artifacts[1].Size)

	assert.Equal(t, filepath.Join(tr.out, "rapidreach-fw_V1.4.2.tar.zst"), res.Bundle)
	f, err := os.Open(res.Bundle)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	zr, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()
	trd := tar.NewReader(zr)
	var names []string
	for {
		hdr, err := trd.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	assert.Equal(t, []string{
		"nrf5340dk_rapidreach-fw_V1.4.2.bin",
		"rr_board_rapidreach-fw_V1.4.2.bin",
		ManifestName,
	}, names)
}

func TestPackageErrors(t *testing.T) {
	root := t.TempDir()
	cfg := Config{BuildDir: filepath.Join(root, "build"), VersionFile: filepath.Join(root, "VERSION"), OutputDir: filepath.Join(root, "out")}
	ctx := context.Background()

	_, err := NewPackager(cfg, nil, nil).Package(ctx)
	assert.ErrorIs(t, err, ErrNoBuildDir)

	require.NoError(t, os.MkdirAll(cfg.BuildDir, 0o755))
	_, err = NewPackager(cfg, nil, nil).Package(ctx)
	assert.ErrorIs(t, err, ErrNoBoards)

	require.NoError(t, os.MkdirAll(filepath.Join(cfg.BuildDir, "board"), 0o755))
	_, err = NewPackager(cfg, nil, nil).Package(ctx)
	assert.ErrorIs(t, err, ErrNoVersionFile)

	writeFile(t, cfg.VersionFile, versionFile, time.Time{})
	var out bytes.Buffer
	_, err = NewPackager(cfg, &out, nil).Package(ctx)
	assert.ErrorIs(t, err, ErrNothingPrepared)
	assert.Contains(t, out.String(), "No firmware binaries were prepared")
}

func TestPackageCancelled(t *testing.T) {
	tr := newTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPackager(tr.config(), nil, nil).Package(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
