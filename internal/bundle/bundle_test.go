package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/expo-up/internal/domain/update"
)

// exporterFunc adapts a function to Exporter.
type exporterFunc func(ctx context.Context, platform, outputDir string) error

func (f exporterFunc) Export(ctx context.Context, platform, outputDir string) error {
	return f(ctx, platform, outputDir)
}

// writeTree creates files (slash-separated names) under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	}
}

// readZip returns file entries of the archive keyed by name.
func readZip(t *testing.T, path string) map[string]string {
	t.Helper()

	reader, err := zip.OpenReader(path)
	require.NoError(t, err)

	defer func() {
		_ = reader.Close()
	}()

	files := make(map[string]string, len(reader.File))

	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		require.NoError(t, err)

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		files[f.Name] = string(data)
	}

	return files
}

func TestBuild(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()
	app := &update.AppConfig{
		Version: "1.0.0",
		Raw:     json.RawMessage(`{ "name": "demo", "version": "1.0.0" }`),
	}

	var gotPlatform, gotDir string

	exporter := exporterFunc(func(_ context.Context, platform, outputDir string) error {
		gotPlatform, gotDir = platform, outputDir
		writeTree(t, filepath.Join(projectDir, outputDir), map[string]string{"metadata.json": "{}"})

		return nil
	})

	require.NoError(t, Build(context.Background(), exporter, projectDir, "dist", update.PlatformAndroid, app))
	require.Equal(t, "android", gotPlatform)
	require.Equal(t, "dist", gotDir)

	snapshot, err := os.ReadFile(filepath.Join(projectDir, "dist", ConfigSnapshotFilename))
	require.NoError(t, err)
	require.Equal(t, `{"name":"demo","version":"1.0.0"}`, string(snapshot))
}

func TestBuild_ExportFails(t *testing.T) {
	t.Parallel()

	boom := errors.New("metro crashed")
	exporter := exporterFunc(func(context.Context, string, string) error { return boom })

	err := Build(context.Background(), exporter, t.TempDir(), "dist", update.PlatformIOS, &update.AppConfig{})

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	require.ErrorIs(t, err, boom)
	require.Equal(t, update.PlatformIOS, buildErr.Platform)
}

// TestNewArchive checks the file name and that entries are stored without the parent folder.
func TestNewArchive(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	srcDir := filepath.Join(workDir, "dist")
	writeTree(t, srcDir, map[string]string{
		"metadata.json":                "{}",
		"expoConfig.json":              `{"version":"1.0.0"}`,
		"_expo/static/js/ios/index.js": "console.log('hi')",
		"assets/abc123":                "png",
	})

	before := time.Now()
	archive, err := NewArchive(srcDir, workDir, time.Now())
	after := time.Now()

	require.NoError(t, err)
	require.GreaterOrEqual(t, archive.Timestamp, before.UnixMilli())
	require.LessOrEqual(t, archive.Timestamp, after.UnixMilli())
	require.Equal(t, filepath.Join(workDir, archive.Name), archive.Path)

	matches, err := filepath.Glob(filepath.Join(workDir, "*.zip"))
	require.NoError(t, err)
	require.Equal(t, []string{archive.Path}, matches)

	files := readZip(t, archive.Path)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}

	sort.Strings(names)
	require.Equal(t, []string{
		"_expo/static/js/ios/index.js",
		"assets/abc123",
		"expoConfig.json",
		"metadata.json",
	}, names)
	require.Equal(t, "console.log('hi')", files["_expo/static/js/ios/index.js"])

	require.NoError(t, archive.Remove())
	require.NoFileExists(t, archive.Path)
	require.NoError(t, archive.Remove())
}

func TestNewArchive_MissingSource(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()

	_, err := NewArchive(filepath.Join(workDir, "missing"), workDir, time.UnixMilli(1700000000000))

	var archiveErr *ArchiveError
	require.ErrorAs(t, err, &archiveErr)
	require.NoFileExists(t, filepath.Join(workDir, "1700000000000.zip"))
}
