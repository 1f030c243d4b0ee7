package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/cache"
	"github.com/starford/dagaz/internal/mutate"
	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/taskservice"
	"github.com/starford/dagaz/internal/vault"
	"github.com/starford/dagaz/internal/writeq"
)

// apiTestEnv wires the full pipeline behind an httptest server.
func apiTestEnv(t *testing.T, authEnabled bool, token string) (string, *vault.Index, *httptest.Server) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir, ".md")
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.CreateTemp("", "dagaz-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	db, err := cache.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return time.Date(2026, time.January, 14, 9, 0, 0, 0, time.UTC) }
	ix := vault.New(store, db, logger, clock)
	if err := ix.BuildInitial(); err != nil {
		t.Fatal(err)
	}
	engine := mutate.NewEngine(store, writeq.New(), clock)
	svc := taskservice.New(store, ix, engine, logger)

	srv := httptest.NewServer(NewRouter(svc, authEnabled, token, nil))
	t.Cleanup(srv.Close)
	return vaultDir, ix, srv
}

func seedVault(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestListTasks(t *testing.T) {
	vaultDir, ix, srv := apiTestEnv(t, false, "")
	seedVault(t, vaultDir, "a.md", "- [ ] Alpha #work\n- [x] Done thing\n- [ ] Beta #home\n")
	if err := ix.ReindexFile("a.md", ix.FreshReader()); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/tasks")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[TaskListResponse](t, resp)
	// Completed tasks are excluded by default.
	if body.Total != 2 {
		t.Fatalf("total = %d, want 2: %+v", body.Total, body.Tasks)
	}

	resp, err = http.Get(srv.URL + "/tasks?include_done=true")
	if err != nil {
		t.Fatal(err)
	}
	if got := decode[TaskListResponse](t, resp); got.Total != 3 {
		t.Errorf("include_done total = %d, want 3", got.Total)
	}

	resp, err = http.Get(srv.URL + "/tasks?tag=work")
	if err != nil {
		t.Fatal(err)
	}
	got := decode[TaskListResponse](t, resp)
	if got.Total != 1 || got.Tasks[0].Title != "Alpha" {
		t.Errorf("tag filter = %+v", got)
	}
}

func TestListTasks_DueBefore(t *testing.T) {
	vaultDir, ix, srv := apiTestEnv(t, false, "")
	seedVault(t, vaultDir, "a.md", "- [ ] Soon 20260115\n- [ ] Later 20260301\n- [ ] Undated\n")
	if err := ix.ReindexFile("a.md", ix.FreshReader()); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/tasks?due_before=2026-02-01")
	if err != nil {
		t.Fatal(err)
	}
	got := decode[TaskListResponse](t, resp)
	if got.Total != 1 || got.Tasks[0].Title != "Soon" {
		t.Errorf("due_before filter = %+v", got)
	}
}

func TestListErrors(t *testing.T) {
	vaultDir, ix, srv := apiTestEnv(t, false, "")
	seedVault(t, vaultDir, "bad.md", "- [ ] 20269999\n")
	if err := ix.ReindexFile("bad.md", ix.FreshReader()); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/errors")
	if err != nil {
		t.Fatal(err)
	}
	got := decode[ErrorListResponse](t, resp)
	if got.Total != 1 || got.Errors[0].Path != "bad.md" {
		t.Errorf("errors = %+v", got)
	}
}

func TestAddTask(t *testing.T) {
	vaultDir, _, srv := apiTestEnv(t, false, "")

	reqBody := `{"path":"inbox.md","title":"Buy milk","due":"2026-01-15","priority":2,"tags":["errands"]}`
	resp, err := http.Post(srv.URL+"/tasks", "application/json", strings.NewReader(reqBody))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[MutationResponse](t, resp)
	if !got.Success || !got.Applied {
		t.Errorf("resp = %+v", got)
	}

	data, err := os.ReadFile(filepath.Join(vaultDir, "inbox.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "- [ ] !! Buy milk #errands 20260115\n" {
		t.Errorf("file = %q", data)
	}

	// The mutation is observable in the index immediately.
	listResp, err := http.Get(srv.URL + "/tasks?path=inbox.md")
	if err != nil {
		t.Fatal(err)
	}
	if list := decode[TaskListResponse](t, listResp); list.Total != 1 {
		t.Errorf("list after add = %+v", list)
	}
}

func TestAddTask_Validation(t *testing.T) {
	_, _, srv := apiTestEnv(t, false, "")

	for _, body := range []string{
		`{"title":"no path"}`,
		`{"path":"a.md"}`,
		`not json`,
		`{"path":"a.md","title":"x","due":"garbage"}`,
	} {
		resp, err := http.Post(srv.URL+"/tasks", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestToggleTask(t *testing.T) {
	vaultDir, ix, srv := apiTestEnv(t, false, "")
	seedVault(t, vaultDir, "a.md", "- [ ] Flip me\n")
	if err := ix.ReindexFile("a.md", ix.FreshReader()); err != nil {
		t.Fatal(err)
	}
	id := ix.FileRecords("a.md")[0].ID

	body, _ := json.Marshal(ToggleTaskRequest{ID: id})
	resp, err := http.Post(srv.URL+"/tasks/toggle", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[MutationResponse](t, resp)
	if !got.Success || !got.Applied || got.ID == "" {
		t.Errorf("resp = %+v", got)
	}

	data, err := os.ReadFile(filepath.Join(vaultDir, "a.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "- [x] Flip me") {
		t.Errorf("file = %q", data)
	}
}

func TestToggleTask_UnknownID(t *testing.T) {
	_, _, srv := apiTestEnv(t, false, "")
	resp, err := http.Post(srv.URL+"/tasks/toggle", "application/json", strings.NewReader(`{"id":"nope"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRescheduleTask(t *testing.T) {
	vaultDir, ix, srv := apiTestEnv(t, false, "")
	seedVault(t, vaultDir, "a.md", "- [ ] Dentist 20260115\n")
	if err := ix.ReindexFile("a.md", ix.FreshReader()); err != nil {
		t.Fatal(err)
	}
	id := ix.FileRecords("a.md")[0].ID

	body, _ := json.Marshal(RescheduleTaskRequest{ID: id, Due: "2026-01-22"})
	resp, err := http.Post(srv.URL+"/tasks/reschedule", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	data, err := os.ReadFile(filepath.Join(vaultDir, "a.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Dentist 20260122") {
		t.Errorf("file = %q", data)
	}
}

func TestRescheduleTask_RequiresDate(t *testing.T) {
	_, _, srv := apiTestEnv(t, false, "")
	resp, err := http.Post(srv.URL+"/tasks/reschedule", "application/json", strings.NewReader(`{"id":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAuth(t *testing.T) {
	_, _, srv := apiTestEnv(t, true, "secret-token")

	resp, err := http.Get(srv.URL + "/tasks")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/tasks", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/tasks", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", resp.StatusCode)
	}
}
