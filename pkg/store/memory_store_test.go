package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursehub/pkg/domain"
)

func TestMemoryStoreCourseLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	courses, err := s.CourseList(ctx)
	if err != nil {
		t.Fatalf("course list: %v", err)
	}
	if len(courses) != 0 {
		t.Fatalf("expected empty list, got %d", len(courses))
	}

	first, err := s.AppendCourse(ctx, "Algebra I", "alice")
	if err != nil {
		t.Fatalf("append course: %v", err)
	}
	if first.ID != "1" {
		t.Fatalf("expected id 1, got %q", first.ID)
	}
	if _, err := s.AppendCourse(ctx, "Algebra I", "bob"); !errors.Is(err, ErrDuplicateCourseName) {
		t.Fatalf("expected duplicate name error, got: %v", err)
	}
	courses, _ = s.CourseList(ctx)
	if len(courses) != 1 {
		t.Fatalf("duplicate append must not grow the list, got %d", len(courses))
	}

	second, err := s.AppendCourse(ctx, "Geometry", "bob")
	if err != nil {
		t.Fatalf("append second course: %v", err)
	}
	if second.ID != "2" {
		t.Fatalf("expected id 2, got %q", second.ID)
	}

	if _, err := s.RemoveCourse(ctx, "1", "bob"); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("wrong owner must not remove, got: %v", err)
	}
	removed, err := s.RemoveCourse(ctx, "1", "alice")
	if err != nil {
		t.Fatalf("remove course: %v", err)
	}
	if removed.Name != "Algebra I" {
		t.Fatalf("unexpected removed course: %+v", removed)
	}
	courses, _ = s.CourseList(ctx)
	if len(courses) != 1 || courses[0].ID != "2" {
		t.Fatalf("unexpected list after removal: %+v", courses)
	}
}

func TestMemoryStoreMediaIsolationByKind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := domain.MediaRecord{Filename: "notes.pdf", Filetype: domain.KindPDF, CourseID: "1", InstructorName: "alice"}
	if err := s.PutMedia(ctx, domain.KindPDF, "notes.pdf", rec); err != nil {
		t.Fatalf("put media: %v", err)
	}
	// Same filename under a different kind must not collide.
	videoRec := domain.MediaRecord{Filename: "notes.pdf", Filetype: domain.KindVideo, CourseID: "2"}
	if err := s.PutMedia(ctx, domain.KindVideo, "notes.pdf", videoRec); err != nil {
		t.Fatalf("put video media: %v", err)
	}

	got, ok, err := s.GetMedia(ctx, domain.KindPDF, "notes.pdf")
	if err != nil || !ok {
		t.Fatalf("get media: ok=%v err=%v", ok, err)
	}
	if got.CourseID != "1" {
		t.Fatalf("pdf record clobbered by video record: %+v", got)
	}

	records, skipped, err := s.ListMedia(ctx, domain.KindPDF, "1")
	if err != nil {
		t.Fatalf("list media: %v", err)
	}
	if skipped != 0 || len(records) != 1 {
		t.Fatalf("expected 1 record 0 skipped, got %d/%d", len(records), skipped)
	}
	if records, _, _ := s.ListMedia(ctx, domain.KindPDF, "2"); len(records) != 0 {
		t.Fatalf("course filter leaked records: %+v", records)
	}

	removed, err := s.DeleteMedia(ctx, domain.KindPDF, "notes.pdf")
	if err != nil || !removed {
		t.Fatalf("delete media: removed=%v err=%v", removed, err)
	}
	if removed, _ := s.DeleteMedia(ctx, domain.KindPDF, "notes.pdf"); removed {
		t.Fatal("second delete must report nothing removed")
	}
	if _, ok, _ := s.GetMedia(ctx, domain.KindVideo, "notes.pdf"); !ok {
		t.Fatal("video record must survive pdf deletion")
	}
}

func TestMemoryStoreProgressDefaultsAndSweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.GetProgress(ctx, domain.KindPDF, "carol", "notes.pdf")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if got.CurrentPage != 1 || got.MaxProgressPercent != 0 {
		t.Fatalf("unexpected pdf default: %+v", got)
	}
	if got, _ := s.GetProgress(ctx, domain.KindVideo, "carol", "intro.mp4"); got.Percent != 0 {
		t.Fatalf("unexpected video default: %+v", got)
	}

	if err := s.PutProgress(ctx, domain.KindPDF, "carol", "notes.pdf", domain.Progress{CurrentPage: 5, MaxProgressPercent: 40}); err != nil {
		t.Fatalf("put progress: %v", err)
	}
	if err := s.PutProgress(ctx, domain.KindVideo, "carol", "intro.mp4", domain.Progress{Percent: 60}); err != nil {
		t.Fatalf("put video progress: %v", err)
	}
	if err := s.PutProgress(ctx, domain.KindVideo, "dave", "other.mp4", domain.Progress{Percent: 10}); err != nil {
		t.Fatalf("put other progress: %v", err)
	}

	got, _ = s.GetProgress(ctx, domain.KindPDF, "carol", "notes.pdf")
	if got.CurrentPage != 5 || got.MaxProgressPercent != 40 {
		t.Fatalf("progress round trip failed: %+v", got)
	}

	removed, err := s.DeleteProgressForFiles(ctx, []string{"notes.pdf", "intro.mp4"})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if got, _ := s.GetProgress(ctx, domain.KindVideo, "dave", "other.mp4"); got.Percent != 10 {
		t.Fatalf("sweep removed an unrelated record: %+v", got)
	}
	if got, _ := s.GetProgress(ctx, domain.KindPDF, "carol", "notes.pdf"); got.CurrentPage != 1 {
		t.Fatalf("swept record should report defaults again: %+v", got)
	}
}

func TestMemoryStoreCourseCreatedAtIsUTC(t *testing.T) {
	s := NewMemoryStore()
	course, err := s.AppendCourse(context.Background(), "History", "alice")
	if err != nil {
		t.Fatalf("append course: %v", err)
	}
	if course.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", course.CreatedAt.Location())
	}
}
