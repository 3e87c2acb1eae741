package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"coursehub/pkg/domain"
)

// fakeKV emulates the REST command protocol over in-memory maps, including
// the flattened HGETALL representation the adapter must normalize.
type fakeKV struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	token   string
}

func newFakeKV(token string) *fakeKV {
	return &fakeKV{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]string),
		token:   token,
	}
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}
	var cmd []string
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil || len(cmd) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad command"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	reply := func(result any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	}
	switch strings.ToUpper(cmd[0]) {
	case "PING":
		reply("PONG")
	case "GET":
		if v, ok := f.strings[cmd[1]]; ok {
			reply(v)
		} else {
			reply(nil)
		}
	case "SET":
		if len(cmd) == 4 && strings.EqualFold(cmd[3], "NX") {
			if _, exists := f.strings[cmd[1]]; exists {
				reply(nil)
				return
			}
		}
		f.strings[cmd[1]] = cmd[2]
		reply("OK")
	case "DEL":
		n := 0
		if _, ok := f.strings[cmd[1]]; ok {
			delete(f.strings, cmd[1])
			n = 1
		}
		reply(n)
	case "HSET":
		if f.hashes[cmd[1]] == nil {
			f.hashes[cmd[1]] = make(map[string]string)
		}
		f.hashes[cmd[1]][cmd[2]] = cmd[3]
		reply(1)
	case "HGET":
		if v, ok := f.hashes[cmd[1]][cmd[2]]; ok {
			reply(v)
		} else {
			reply(nil)
		}
	case "HGETALL":
		flat := make([]string, 0, len(f.hashes[cmd[1]])*2)
		for field, value := range f.hashes[cmd[1]] {
			flat = append(flat, field, value)
		}
		reply(flat)
	case "HDEL":
		n := 0
		if _, ok := f.hashes[cmd[1]][cmd[2]]; ok {
			delete(f.hashes[cmd[1]], cmd[2])
			n = 1
		}
		reply(n)
	case "SCAN":
		prefix := strings.TrimSuffix(cmd[3], "*")
		keys := make([]string, 0)
		for key := range f.strings {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
		reply([]any{"0", keys})
	default:
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown command " + cmd[0]})
	}
}

func newTestRestKVStore(t *testing.T) *RestKVStore {
	t.Helper()
	srv := httptest.NewServer(newFakeKV("secret"))
	t.Cleanup(srv.Close)
	s, err := NewRestKVStore(context.Background(), srv.URL, "secret")
	if err != nil {
		t.Fatalf("new restkv store: %v", err)
	}
	return s
}

func TestRestKVStoreRejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(newFakeKV("secret"))
	defer srv.Close()
	if _, err := NewRestKVStore(context.Background(), srv.URL, "wrong"); err == nil {
		t.Fatal("expected constructor to fail on auth error")
	}
}

func TestRestKVStoreCourseContract(t *testing.T) {
	ctx := context.Background()
	s := newTestRestKVStore(t)

	courses, err := s.CourseList(ctx)
	if err != nil {
		t.Fatalf("course list: %v", err)
	}
	if len(courses) != 0 {
		t.Fatalf("expected empty list, got %d", len(courses))
	}

	course, err := s.AppendCourse(ctx, "Algebra I", "alice")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if course.ID != "1" {
		t.Fatalf("expected id 1, got %q", course.ID)
	}
	if _, err := s.AppendCourse(ctx, "Algebra I", "bob"); !errors.Is(err, ErrDuplicateCourseName) {
		t.Fatalf("expected duplicate error, got: %v", err)
	}
	if _, err := s.RemoveCourse(ctx, "1", "bob"); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("wrong owner must not remove, got: %v", err)
	}
	if _, err := s.RemoveCourse(ctx, "1", "alice"); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestRestKVStoreNormalizesFlattenedHGetAll(t *testing.T) {
	ctx := context.Background()
	s := newTestRestKVStore(t)

	for _, name := range []string{"a.pdf", "b.pdf"} {
		rec := domain.MediaRecord{Filename: name, Filetype: domain.KindPDF, CourseID: "1"}
		if err := s.PutMedia(ctx, domain.KindPDF, name, rec); err != nil {
			t.Fatalf("put %s: %v", name, err)
		}
	}
	records, skipped, err := s.ListMedia(ctx, domain.KindPDF, "1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if skipped != 0 || len(records) != 2 {
		t.Fatalf("expected 2 records 0 skipped, got %d/%d", len(records), skipped)
	}

	got, ok, err := s.GetMedia(ctx, domain.KindPDF, "a.pdf")
	if err != nil || !ok {
		t.Fatalf("get media: ok=%v err=%v", ok, err)
	}
	if got.CourseID != "1" {
		t.Fatalf("record mangled: %+v", got)
	}
	if removed, _ := s.DeleteMedia(ctx, domain.KindPDF, "a.pdf"); !removed {
		t.Fatal("expected delete to report removal")
	}
}

func TestRestKVStoreProgressSweepAcrossCursors(t *testing.T) {
	ctx := context.Background()
	s := newTestRestKVStore(t)

	if err := s.PutProgress(ctx, domain.KindPDF, "carol", "notes.pdf", domain.Progress{CurrentPage: 3, MaxProgressPercent: 20}); err != nil {
		t.Fatalf("put progress: %v", err)
	}
	if err := s.PutProgress(ctx, domain.KindAudio, "carol", "lecture.mp3", domain.Progress{Percent: 50}); err != nil {
		t.Fatalf("put audio progress: %v", err)
	}

	got, err := s.GetProgress(ctx, domain.KindPDF, "carol", "notes.pdf")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if got.CurrentPage != 3 {
		t.Fatalf("round trip failed: %+v", got)
	}

	removed, err := s.DeleteProgressForFiles(ctx, []string{"notes.pdf"})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if got, _ := s.GetProgress(ctx, domain.KindAudio, "carol", "lecture.mp3"); got.Percent != 50 {
		t.Fatalf("sweep touched an unrelated key: %+v", got)
	}
}
