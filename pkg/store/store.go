package store

import (
	"context"
	"errors"

	"coursehub/pkg/domain"
)

var (
	// ErrDuplicateCourseName indicates a course with the same name already exists.
	ErrDuplicateCourseName = errors.New("course name already exists")

	// ErrCourseNotFound indicates no course matched both the id and the
	// requesting instructor. Callers cannot distinguish a missing course
	// from one owned by somebody else.
	ErrCourseNotFound = errors.New("course not found")
)

// CollectionName maps a media kind to its backing collection name. The names
// are load-bearing for the Redis adapter, which uses them as hash keys.
func CollectionName(kind domain.Kind) string {
	switch kind {
	case domain.KindVideo:
		return "videos"
	case domain.KindPDF:
		return "pdfs"
	case domain.KindDocx:
		return "docx_files"
	case domain.KindAudio:
		return "audio_files"
	default:
		return string(kind)
	}
}

// Store is the metadata contract: one ordered course list, four independent
// filename-keyed media collections, and a sparse set of per-student
// progress records.
//
// Read-style operations never fail on absence; they return zero values or
// defaults. Typed failures are reserved for integrity violations
// (ErrDuplicateCourseName) and ownership mismatches (ErrCourseNotFound).
// Adapter-level outages propagate as plain errors; callers must not retry.
type Store interface {
	// CourseList returns the ordered course list, initializing the backing
	// key to an empty list on first read if absent.
	CourseList(ctx context.Context) ([]domain.Course, error)

	// AppendCourse assigns the next decimal-string id from the current list
	// length and appends. Fails with ErrDuplicateCourseName on an exact
	// case-sensitive name match.
	AppendCourse(ctx context.Context, name, instructor string) (domain.Course, error)

	// RemoveCourse removes the course matching both id and instructor and
	// returns it. A matching id owned by a different instructor is
	// ErrCourseNotFound, same as a missing id.
	RemoveCourse(ctx context.Context, id, instructor string) (domain.Course, error)

	// PutMedia upserts unconditionally, overwriting any record under the
	// same filename within the kind.
	PutMedia(ctx context.Context, kind domain.Kind, filename string, rec domain.MediaRecord) error

	GetMedia(ctx context.Context, kind domain.Kind, filename string) (domain.MediaRecord, bool, error)

	// ListMedia returns every record in the kind's collection, optionally
	// filtered by course id. Malformed stored entries are skipped; the
	// second result reports how many were skipped.
	ListMedia(ctx context.Context, kind domain.Kind, courseID string) ([]domain.MediaRecord, int, error)

	// DeleteMedia reports whether a record was actually removed.
	DeleteMedia(ctx context.Context, kind domain.Kind, filename string) (bool, error)

	PutProgress(ctx context.Context, kind domain.Kind, student, filename string, value domain.Progress) error

	// GetProgress returns the stored value, or the kind's default when no
	// record exists.
	GetProgress(ctx context.Context, kind domain.Kind, student, filename string) (domain.Progress, error)

	// DeleteProgressForFiles sweeps all progress records across all kinds
	// and removes those whose key ends in one of the given filenames.
	// Best-effort and unindexed; acceptable because course deletion is a
	// rare administrative operation.
	DeleteProgressForFiles(ctx context.Context, filenames []string) (int, error)
}
