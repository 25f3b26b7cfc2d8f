package panel_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zip"

	"tracktap/internal/capture"
	"tracktap/internal/config"
	"tracktap/internal/history"
	"tracktap/internal/logging"
	"tracktap/internal/panel"
	"tracktap/internal/playlist"
	"tracktap/internal/recorder"
	"tracktap/internal/recordings"
	"tracktap/internal/session"
	"tracktap/internal/testsupport"
)

// gatedJob blocks every capture until release is closed.
type gatedJob struct {
	release chan struct{}
	once    sync.Once
}

func newGatedJob() *gatedJob {
	return &gatedJob{release: make(chan struct{})}
}

func (g *gatedJob) open() {
	g.once.Do(func() { close(g.release) })
}

func (g *gatedJob) Run(ctx context.Context, req capture.Request) (capture.Outcome, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return capture.Outcome{Status: capture.StatusError}, ctx.Err()
	}
	if err := os.WriteFile(req.OutputPath, []byte("mp3"), 0o644); err != nil {
		return capture.Outcome{Status: capture.StatusError}, err
	}
	return capture.Outcome{OutputPath: req.OutputPath, Status: capture.StatusOK}, nil
}

type fixture struct {
	cfg     *config.Config
	job     *gatedJob
	service *recorder.Service
	history *history.Store
	server  *httptest.Server
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	job := newGatedJob()
	runner := capture.NewRunner(cfg, job, logging.NewNop(), capture.WithJournal(store))
	svc := recorder.New(cfg, runner, playlist.NewCatalog(cfg.Paths.PlaylistsDir), session.NewTracker(cfg.LockPath()), logging.NewNop())
	if _, err := svc.Catalog().Save(&playlist.Playlist{
		Title:  "Road Trip",
		Tracks: []playlist.Track{{Title: "One", Artists: []string{"A"}, DurationMS: 1000}},
	}); err != nil {
		t.Fatalf("save playlist: %v", err)
	}

	srv := panel.New(cfg, svc, recordings.NewLibrary(cfg.Paths.OutputDir), store, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		job.open()
		svc.Wait()
		ts.Close()
	})
	return &fixture{cfg: cfg, job: job, service: svc, history: store, server: ts}
}

func (f *fixture) do(t *testing.T, method, path, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestStatusIdle(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/status", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
	var snap session.Snapshot
	decode(t, resp, &snap)
	if snap.Running || snap.Status != session.PhaseIdle {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestAuthRequiredWhenTokenSet(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Paths.APIToken = "secret" })

	if resp := f.do(t, http.MethodGet, "/api/status", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/status", "", map[string]string{"Authorization": "Bearer wrong"}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/status", "", map[string]string{"Authorization": "Bearer secret"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token: status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/status?token=secret", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("query token: status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("index page: status = %d", resp.StatusCode)
	}
}

func TestConcurrentTriggersExactlyOneAccepted(t *testing.T) {
	f := newFixture(t)
	const callers = 8

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, body := "/api/record/playlist", `{"playlist":"Road Trip"}`
			if i%2 == 1 {
				path, body = "/api/record/track", `{"track":{"title":"Solo","artists":["X"],"duration_ms":1000}}`
			}
			resp, err := http.Post(f.server.URL+path, "application/json", strings.NewReader(body))
			if err != nil {
				t.Errorf("post: %v", err)
				return
			}
			_ = resp.Body.Close()
			mu.Lock()
			codes[resp.StatusCode]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if codes[http.StatusAccepted] != 1 || codes[http.StatusConflict] != callers-1 {
		t.Fatalf("unexpected status distribution: %v", codes)
	}
	if !f.service.Tracker().Running() {
		t.Fatal("expected an active capture")
	}

	f.job.open()
	f.service.Wait()
	if f.service.Tracker().Running() {
		t.Fatal("expected the capture to finish")
	}
}

func TestRecordTrackValidation(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/record/track", `{"playlist":"Road Trip","index":5}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp = f.do(t, http.MethodPost, "/api/record/playlist", `{"playlist":"Road Trip","bogus":1}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: status = %d", resp.StatusCode)
	}
	resp = f.do(t, http.MethodPost, "/api/record/playlist", `{"playlist":"Nope"}`, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing playlist: status = %d", resp.StatusCode)
	}
	if f.service.Tracker().Running() {
		t.Fatal("rejected triggers must not claim the session")
	}
}

func TestPlaylistsListing(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/playlists", "", nil)
	var body struct {
		Playlists []playlist.Summary `json:"playlists"`
	}
	decode(t, resp, &body)
	if len(body.Playlists) != 1 || body.Playlists[0].Title != "Road Trip" || body.Playlists[0].TrackCount != 1 {
		t.Fatalf("unexpected playlists: %+v", body.Playlists)
	}
}

func TestRecordingsDownloadAndArchive(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteFile(t, filepath.Join(f.cfg.Paths.OutputDir, "Road Trip", "A - One.mp3"), 64)
	testsupport.WriteFile(t, filepath.Join(f.cfg.Paths.OutputDir, "X - Solo.mp3"), 8)

	resp := f.do(t, http.MethodGet, "/api/recordings", "", nil)
	var listing struct {
		Folders   []recordings.Folder `json:"folders"`
		RootFiles []recordings.File   `json:"root_files"`
	}
	decode(t, resp, &listing)
	if len(listing.Folders) != 1 || len(listing.RootFiles) != 1 {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	resp = f.do(t, http.MethodGet, "/api/recordings/Road%20Trip/A%20-%20One.mp3", "", nil)
	if resp.StatusCode != http.StatusOK || resp.ContentLength != 64 {
		t.Fatalf("download: status = %d length = %d", resp.StatusCode, resp.ContentLength)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Disposition"), "attachment") {
		t.Fatalf("missing attachment disposition: %q", resp.Header.Get("Content-Disposition"))
	}

	if resp := f.do(t, http.MethodGet, "/api/recordings/X%20-%20Solo.mp3", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("root download: status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/recordings/Road%20Trip/missing.mp3", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing file: status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/recordings/Road%20Trip/playlist.json", "", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-recording: status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/api/recordings/Road%20Trip/archive", "", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/zip" {
		t.Fatalf("archive: status = %d type = %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "Road Trip/A - One.mp3" {
		t.Fatalf("unexpected archive entries: %d", len(zr.File))
	}

	if resp := f.do(t, http.MethodGet, "/api/recordings/Nope/archive", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing folder archive: status = %d", resp.StatusCode)
	}
}

func TestHistoryAfterCapture(t *testing.T) {
	f := newFixture(t)
	f.job.open()

	resp := f.do(t, http.MethodPost, "/api/record/playlist", `{"playlist":"Road Trip"}`, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger: status = %d", resp.StatusCode)
	}
	var accepted struct {
		RunID string `json:"run_id"`
	}
	decode(t, resp, &accepted)
	f.service.Wait()

	resp = f.do(t, http.MethodGet, "/api/history?limit=5", "", nil)
	var list struct {
		Runs []history.Run `json:"runs"`
	}
	decode(t, resp, &list)
	if len(list.Runs) != 1 || list.Runs[0].ID != accepted.RunID || list.Runs[0].OK != 1 {
		t.Fatalf("unexpected history: %+v", list.Runs)
	}

	resp = f.do(t, http.MethodGet, "/api/history/"+accepted.RunID, "", nil)
	var detail struct {
		Run      history.Run     `json:"run"`
		Outcomes []history.Entry `json:"outcomes"`
	}
	decode(t, resp, &detail)
	if len(detail.Outcomes) != 1 || detail.Outcomes[0].Status != "ok" {
		t.Fatalf("unexpected outcomes: %+v", detail.Outcomes)
	}

	if resp := f.do(t, http.MethodGet, "/api/history/unknown", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown run: status = %d", resp.StatusCode)
	}
}

func TestStatusStreamPushesUpdates(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/status/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap session.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if snap.Running {
		t.Fatalf("expected idle initial snapshot, got %+v", snap)
	}

	if resp := f.do(t, http.MethodPost, "/api/record/playlist", `{"playlist":"Road Trip"}`, nil); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger: status = %d", resp.StatusCode)
	}
	for !snap.Running {
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read update: %v", err)
		}
	}
	if snap.Title != "Road Trip" || snap.Total != 1 {
		t.Fatalf("unexpected running snapshot: %+v", snap)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	if resp := f.do(t, http.MethodGet, "/api/nope", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, "/api/status", "", nil); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
