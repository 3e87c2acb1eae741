package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"coursehub/pkg/domain"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), mr.Addr(), "")
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	return s, mr
}

func TestRedisStoreInitializesCourseListOnFirstRead(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	courses, err := s.CourseList(ctx)
	if err != nil {
		t.Fatalf("course list: %v", err)
	}
	if len(courses) != 0 {
		t.Fatalf("expected empty list, got %d", len(courses))
	}
	raw, err := mr.Get(coursesKey)
	if err != nil {
		t.Fatalf("backing key not initialized: %v", err)
	}
	if raw != "[]" {
		t.Fatalf("expected empty JSON array, got %q", raw)
	}
}

func TestRedisStoreCourseAppendAndRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	first, err := s.AppendCourse(ctx, "Algebra I", "alice")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.ID != "1" {
		t.Fatalf("expected id 1, got %q", first.ID)
	}
	if _, err := s.AppendCourse(ctx, "Algebra I", "alice"); !errors.Is(err, ErrDuplicateCourseName) {
		t.Fatalf("expected duplicate error, got: %v", err)
	}
	if _, err := s.RemoveCourse(ctx, "1", "mallory"); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("wrong owner must not remove, got: %v", err)
	}
	if _, err := s.RemoveCourse(ctx, "1", "alice"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	courses, _ := s.CourseList(ctx)
	if len(courses) != 0 {
		t.Fatalf("expected empty list after remove, got %+v", courses)
	}
}

func TestRedisStoreMediaRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	rec := domain.MediaRecord{
		Filename:       "notes.pdf",
		Filetype:       domain.KindPDF,
		InstructorName: "alice",
		CourseID:       "1",
		URL:            "/uploads/1/notes.pdf",
		StorageKey:     "1/notes.pdf",
	}
	if err := s.PutMedia(ctx, domain.KindPDF, rec.Filename, rec); err != nil {
		t.Fatalf("put media: %v", err)
	}
	got, ok, err := s.GetMedia(ctx, domain.KindPDF, "notes.pdf")
	if err != nil || !ok {
		t.Fatalf("get media: ok=%v err=%v", ok, err)
	}
	if got.StorageKey != "1/notes.pdf" || got.InstructorName != "alice" {
		t.Fatalf("record mangled in transit: %+v", got)
	}
	if _, ok, _ := s.GetMedia(ctx, domain.KindVideo, "notes.pdf"); ok {
		t.Fatal("kind collections must not share keys")
	}

	removed, err := s.DeleteMedia(ctx, domain.KindPDF, "notes.pdf")
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
}

func TestRedisStoreListSkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	good := domain.MediaRecord{Filename: "ok.pdf", Filetype: domain.KindPDF, CourseID: "1"}
	if err := s.PutMedia(ctx, domain.KindPDF, "ok.pdf", good); err != nil {
		t.Fatalf("put media: %v", err)
	}
	mr.HSet(CollectionName(domain.KindPDF), "broken.pdf", "{not json")

	records, skipped, err := s.ListMedia(ctx, domain.KindPDF, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Filename != "ok.pdf" {
		t.Fatalf("expected only the well-formed record, got %+v", records)
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", skipped)
	}
}

func TestRedisStoreProgressSweep(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	if err := s.PutProgress(ctx, domain.KindPDF, "carol", "notes.pdf", domain.Progress{CurrentPage: 5, MaxProgressPercent: 40}); err != nil {
		t.Fatalf("put progress: %v", err)
	}
	if err := s.PutProgress(ctx, domain.KindDocx, "carol", "notes.docx", domain.Progress{MaxProgressPercent: 25}); err != nil {
		t.Fatalf("put docx progress: %v", err)
	}
	if err := s.PutProgress(ctx, domain.KindVideo, "dave", "keep.mp4", domain.Progress{Percent: 80}); err != nil {
		t.Fatalf("put video progress: %v", err)
	}

	got, err := s.GetProgress(ctx, domain.KindPDF, "carol", "notes.pdf")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if got.CurrentPage != 5 || got.MaxProgressPercent != 40 {
		t.Fatalf("round trip failed: %+v", got)
	}

	removed, err := s.DeleteProgressForFiles(ctx, []string{"notes.pdf", "notes.docx"})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if got, _ := s.GetProgress(ctx, domain.KindVideo, "dave", "keep.mp4"); got.Percent != 80 {
		t.Fatalf("sweep touched an unrelated key: %+v", got)
	}
	if got, _ := s.GetProgress(ctx, domain.KindPDF, "carol", "notes.pdf"); got.CurrentPage != 1 {
		t.Fatalf("expected default after sweep, got %+v", got)
	}
}
