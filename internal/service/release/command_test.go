package release

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/expo-up/internal/bundle"
	"github.com/oshokin/expo-up/internal/config"
	"github.com/oshokin/expo-up/internal/domain/update"
	"github.com/oshokin/expo-up/internal/expo"
	"github.com/oshokin/expo-up/internal/project"
	"github.com/oshokin/expo-up/internal/service/common"
)

// upload is what the fake update server received.
type upload struct {
	fields   map[string]string
	fileName string
	files    map[string]string
}

// fakeServer is an update server answering uploads with a fixed status.
type fakeServer struct {
	*httptest.Server

	hits atomic.Int32

	mu       sync.Mutex
	received *upload
}

func newFakeServer(t *testing.T, status int, body string) *fakeServer {
	t.Helper()

	srv := new(fakeServer)

	router := chi.NewRouter()
	router.Post("/api/expo-up", func(w http.ResponseWriter, r *http.Request) {
		srv.hits.Add(1)

		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		got, err := readUpload(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		srv.mu.Lock()
		srv.received = got
		srv.mu.Unlock()

		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})

	srv.Server = httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv
}

// readUpload decodes the multipart form and the zip inside it.
func readUpload(r *http.Request) (*upload, error) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		return nil, err
	}

	got := &upload{
		fields: make(map[string]string),
		files:  make(map[string]string),
	}

	for key, values := range r.MultipartForm.Value {
		got.fields[key] = values[0]
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	got.fileName = header.Filename

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}

		rc, openErr := f.Open()
		if openErr != nil {
			return nil, openErr
		}

		contents, readErr := io.ReadAll(rc)
		_ = rc.Close()

		if readErr != nil {
			return nil, readErr
		}

		got.files[f.Name] = string(contents)
	}

	return got, nil
}

func (s *fakeServer) upload() *upload {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.received
}

// fakeExpo emulates the Expo CLI of a project whose config points at updatesURL.
type fakeExpo struct {
	config    string
	exportErr error
	exports   atomic.Int32
}

func newFakeExpo(updatesURL string) *fakeExpo {
	return &fakeExpo{
		config: `{"name":"demo","version":"1.0.0","updates":{"url":"` + updatesURL +
			`/api/manifest","requestHeaders":{"x-expo-updates-key":"demo-key"}}}`,
	}
}

func (f *fakeExpo) Run(_ context.Context, cmd *expo.Command) ([]byte, error) {
	switch cmd.Args[1] {
	case "-v":
		return []byte("0.22.0"), nil
	case "config":
		return []byte(f.config), nil
	case "export":
		f.exports.Add(1)

		outputDir := filepath.Join(cmd.Dir, cmd.Args[5])
		if err := os.MkdirAll(filepath.Join(outputDir, "_expo", "static", "js", cmd.Args[3]), 0o755); err != nil {
			return nil, err
		}

		if f.exportErr != nil {
			return nil, f.exportErr
		}

		files := map[string]string{
			"metadata.json": `{"version":0}`,
			filepath.Join("_expo", "static", "js", cmd.Args[3], "index.hbc"): "bytecode",
		}
		for name, contents := range files {
			if err := os.WriteFile(filepath.Join(outputDir, name), []byte(contents), 0o600); err != nil {
				return nil, err
			}
		}

		return nil, nil
	default:
		return nil, errors.New("unexpected command " + cmd.String())
	}
}

// requireClean asserts that no release artifacts remain in dir.
func requireClean(t *testing.T, dir string) {
	t.Helper()

	archives, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	require.NoError(t, err)
	require.Empty(t, archives)
	require.NoDirExists(t, filepath.Join(dir, config.DefaultOutputDir))
	require.NoFileExists(t, filepath.Join(dir, common.LockFilename))
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	server := newFakeServer(t, http.StatusCreated, "")
	cli := newFakeExpo(server.URL)

	before := time.Now().UnixMilli()
	err := Run(context.Background(), &Options{
		ProjectDir: dir,
		Platform:   "ios",
		Token:      "token",
		Executor:   cli,
	})
	after := time.Now().UnixMilli()

	require.NoError(t, err)
	requireClean(t, dir)

	got := server.upload()
	require.NotNil(t, got)
	require.Equal(t, "demo-key", got.fields["updatesKey"])
	require.Equal(t, "ios", got.fields["platform"])
	require.Equal(t, "1.0.0", got.fields["runtimeVersion"])

	timestamp, err := strconv.ParseInt(got.fields["bundleTimestamp"], 10, 64)
	require.NoError(t, err)
	require.GreaterOrEqual(t, timestamp, before)
	require.LessOrEqual(t, timestamp, after)
	require.Equal(t, got.fields["bundleTimestamp"]+".zip", got.fileName)

	require.Equal(t, map[string]string{
		"metadata.json":                 `{"version":0}`,
		"_expo/static/js/ios/index.hbc": "bytecode",
		bundle.ConfigSnapshotFilename:   cli.config,
	}, got.files)
}

// TestRun_UploadFailures checks reporting and cleanup when the upload fails.
func TestRun_UploadFailures(t *testing.T) {
	t.Parallel()

	t.Run("duplicate bundle", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		server := newFakeServer(t, http.StatusOK, "")

		err := Run(context.Background(), &Options{
			ProjectDir: dir,
			Platform:   "android",
			Token:      "token",
			Executor:   newFakeExpo(server.URL),
		})
		require.ErrorIs(t, err, common.ErrBundleExists)
		require.Equal(t, int32(1), server.hits.Load())
		requireClean(t, dir)
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		server := newFakeServer(t, http.StatusInternalServerError, `{"error":"Storage unavailable"}`)

		err := Run(context.Background(), &Options{
			ProjectDir: dir,
			Platform:   "android",
			Token:      "token",
			Executor:   newFakeExpo(server.URL),
		})
		require.EqualError(t, err, "Storage unavailable")
		requireClean(t, dir)
	})

	t.Run("unreachable server", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		server := newFakeServer(t, http.StatusCreated, "")
		cli := newFakeExpo(server.URL)
		server.Close()

		err := Run(context.Background(), &Options{
			ProjectDir: dir,
			Platform:   "ios",
			Token:      "token",
			Executor:   cli,
		})
		require.EqualError(t, err, common.GenericFailureMessage)
		requireClean(t, dir)
	})
}

// TestRun_MissingConfig verifies that validation stops the release before any export or request.
func TestRun_MissingConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	server := newFakeServer(t, http.StatusCreated, "")
	cli := &fakeExpo{config: `{"version":"1.0.0","updates":{"url":"` + server.URL + `"}}`}

	err := Run(context.Background(), &Options{
		ProjectDir: dir,
		Platform:   "ios",
		Token:      "token",
		Executor:   cli,
	})

	var missing *project.MissingFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "updates.requestHeaders.x-expo-updates-key", missing.Path)
	require.Zero(t, server.hits.Load())
	require.Zero(t, cli.exports.Load())
	requireClean(t, dir)
}

func TestRun_BuildFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	server := newFakeServer(t, http.StatusCreated, "")
	cli := newFakeExpo(server.URL)
	cli.exportErr = errors.New("unable to resolve module")

	err := Run(context.Background(), &Options{
		ProjectDir: dir,
		Platform:   "ios",
		Token:      "token",
		Executor:   cli,
	})

	var buildErr *bundle.BuildError
	require.ErrorAs(t, err, &buildErr)
	require.Zero(t, server.hits.Load())
	requireClean(t, dir)
}

func TestRun_InvalidInput(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		ProjectDir: t.TempDir(),
		Platform:   "web",
		Token:      "token",
		Executor:   newFakeExpo("https://example.com"),
	})
	require.ErrorIs(t, err, update.ErrUnknownPlatform)

	err = Run(context.Background(), &Options{
		ProjectDir: t.TempDir(),
		Platform:   "ios",
		Executor:   newFakeExpo("https://example.com"),
	})
	require.Error(t, err)
}

func TestRun_LockHeld(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lockPath := filepath.Join(dir, common.LockFilename)
	require.NoError(t, os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getppid())), 0o600))

	server := newFakeServer(t, http.StatusCreated, "")
	cli := newFakeExpo(server.URL)

	err := Run(context.Background(), &Options{
		ProjectDir: dir,
		Platform:   "ios",
		Token:      "token",
		Executor:   cli,
	})
	require.ErrorIs(t, err, common.ErrReleaseInProgress)
	require.Zero(t, cli.exports.Load())
	require.FileExists(t, lockPath)
}
