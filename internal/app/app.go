package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"coursehub/pkg/domain"
	"coursehub/pkg/storage"
	"coursehub/pkg/store"
)

// App orchestrates uploads, listings, deletions, and the course cascade on
// top of the metadata store and the blob relay. It holds no per-request
// state; both collaborators are process-wide singletons injected at start.
type App struct {
	store store.Store
	relay storage.Relay
}

// New wires the application core.
func New(metadata store.Store, relay storage.Relay) *App {
	return &App{store: metadata, relay: relay}
}

// CascadeResult reports what a course deletion removed.
type CascadeResult struct {
	Course               domain.Course
	DeletedFilesCount    int
	DeletedProgressCount int
}

// UploadMedia validates, sanitizes, stores bytes through the relay, and
// upserts the metadata record. Re-uploading a name that sanitizes to an
// existing key silently replaces the prior record and, where the relay
// allows it, the prior bytes.
func (a *App) UploadMedia(ctx context.Context, sess domain.Session, kind domain.Kind, courseID, filename string, r io.Reader, size int64) (domain.MediaRecord, error) {
	if sess.Role != domain.RoleInstructor {
		return domain.MediaRecord{}, ErrUnauthorized
	}
	if strings.TrimSpace(courseID) == "" {
		return domain.MediaRecord{}, validationErr("courseId is required")
	}
	if strings.TrimSpace(filename) == "" {
		return domain.MediaRecord{}, validationErr("no file selected")
	}
	if !extensionAllowed(kind, filename) {
		return domain.MediaRecord{}, validationErr("file type not allowed for %s", kind)
	}
	safeName := SanitizeFilename(filename)
	if safeName == "" {
		return domain.MediaRecord{}, validationErr("filename reduces to nothing after sanitizing")
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(safeName)))
	if contentType == "" {
		contentType = kindSpecs[kind].fallbackContent
	}

	pages := 0
	if kind == domain.KindPDF {
		// Page counting needs random access, so PDFs are buffered. Upload
		// size is already bounded by the server's MaxBytesReader.
		data, err := io.ReadAll(r)
		if err != nil {
			return domain.MediaRecord{}, fmt.Errorf("read upload: %w", err)
		}
		pages = countPDFPages(data)
		r = bytes.NewReader(data)
		size = int64(len(data))
	}

	prior, hadPrior, err := a.store.GetMedia(ctx, kind, safeName)
	if err != nil {
		return domain.MediaRecord{}, fmt.Errorf("check existing record: %w", err)
	}

	handle, err := a.relay.Store(ctx, courseID+"/"+safeName, r, size, contentType)
	if err != nil {
		return domain.MediaRecord{}, fmt.Errorf("store file bytes: %w", err)
	}

	rec := domain.MediaRecord{
		Filename:       safeName,
		Filetype:       kind,
		LastUpdated:    time.Now().UTC(),
		InstructorName: sess.Name,
		CourseID:       courseID,
		URL:            handle.URL,
		StorageKey:     handle.Key,
		SizeBytes:      size,
		Pages:          pages,
	}
	if err := a.store.PutMedia(ctx, kind, safeName, rec); err != nil {
		// Metadata write failed; the fresh bytes are unreachable, remove them.
		if delErr := a.relay.Delete(ctx, handle.Key); delErr != nil {
			slog.Warn("orphaned upload bytes", "key", handle.Key, "err", delErr)
		}
		return domain.MediaRecord{}, fmt.Errorf("store media record: %w", err)
	}

	// The overwritten record's bytes live under a different key when the
	// relay suffixes names; drop them so they do not pile up.
	if hadPrior && prior.StorageKey != "" && prior.StorageKey != handle.Key {
		if err := a.relay.Delete(ctx, prior.StorageKey); err != nil {
			slog.Warn("failed to delete replaced bytes", "key", prior.StorageKey, "err", err)
		}
	}
	return rec, nil
}

// ListMedia returns the kind's records, optionally filtered by course.
// Any session may list; skipped reports silently dropped malformed entries.
func (a *App) ListMedia(ctx context.Context, kind domain.Kind, courseID string) ([]domain.MediaRecord, int, error) {
	records, skipped, err := a.store.ListMedia(ctx, kind, courseID)
	if err != nil {
		return nil, 0, fmt.Errorf("list media: %w", err)
	}
	if skipped > 0 {
		slog.Warn("skipped malformed media records", "kind", kind, "count", skipped)
	}
	return records, skipped, nil
}

// DeleteMedia removes one record owned by the requesting instructor.
// Byte deletion is best-effort; metadata removal proceeds regardless.
func (a *App) DeleteMedia(ctx context.Context, sess domain.Session, kind domain.Kind, filename string) error {
	if sess.Role != domain.RoleInstructor {
		return ErrUnauthorized
	}
	rec, ok, err := a.store.GetMedia(ctx, kind, filename)
	if err != nil {
		return fmt.Errorf("read media record: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if rec.InstructorName != sess.Name {
		return ErrUnauthorized
	}
	if rec.StorageKey != "" {
		if err := a.relay.Delete(ctx, rec.StorageKey); err != nil {
			slog.Warn("failed to delete file bytes", "key", rec.StorageKey, "err", err)
		}
	}
	if _, err := a.store.DeleteMedia(ctx, kind, filename); err != nil {
		return fmt.Errorf("delete media record: %w", err)
	}
	return nil
}

// Courses returns the full course list.
func (a *App) Courses(ctx context.Context) ([]domain.Course, error) {
	return a.store.CourseList(ctx)
}

// GetCourse looks a course up by id.
func (a *App) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	courses, err := a.store.CourseList(ctx)
	if err != nil {
		return domain.Course{}, err
	}
	for _, c := range courses {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Course{}, ErrNotFound
}

// CreateCourse appends a course owned by the requesting instructor.
func (a *App) CreateCourse(ctx context.Context, sess domain.Session, name string) (domain.Course, error) {
	if sess.Role != domain.RoleInstructor {
		return domain.Course{}, ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Course{}, validationErr("course name is required")
	}
	return a.store.AppendCourse(ctx, name, sess.Name)
}

// DeleteCourse runs the cascade: locate, remove media per kind, sweep
// progress, then drop the course from the list. A failed byte deletion
// never blocks metadata removal.
func (a *App) DeleteCourse(ctx context.Context, sess domain.Session, id string) (CascadeResult, error) {
	if sess.Role != domain.RoleInstructor {
		return CascadeResult{}, ErrUnauthorized
	}

	// Phase 1: fail fast when the course is absent or owned by someone else.
	courses, err := a.store.CourseList(ctx)
	if err != nil {
		return CascadeResult{}, fmt.Errorf("read course list: %w", err)
	}
	found := false
	for _, c := range courses {
		if c.ID == id && c.Instructor == sess.Name {
			found = true
			break
		}
	}
	if !found {
		return CascadeResult{}, store.ErrCourseNotFound
	}

	// Phase 2: remove every media record referencing the course.
	var deletedFilenames []string
	deletedFiles := 0
	for _, kind := range domain.Kinds {
		records, _, err := a.store.ListMedia(ctx, kind, id)
		if err != nil {
			slog.Warn("cascade: listing failed, skipping kind", "kind", kind, "course_id", id, "err", err)
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for _, rec := range records {
			key := rec.StorageKey
			if key == "" {
				continue
			}
			g.Go(func() error {
				if err := a.relay.Delete(gctx, key); err != nil {
					slog.Warn("cascade: byte deletion failed", "key", key, "err", err)
				}
				return nil
			})
		}
		_ = g.Wait()

		for _, rec := range records {
			if _, err := a.store.DeleteMedia(ctx, kind, rec.Filename); err != nil {
				slog.Warn("cascade: metadata deletion failed", "kind", kind, "filename", rec.Filename, "err", err)
				continue
			}
			deletedFiles++
			deletedFilenames = append(deletedFilenames, rec.Filename)
		}
	}

	// Phase 3: sweep progress records referencing the deleted files.
	deletedProgress, err := a.store.DeleteProgressForFiles(ctx, deletedFilenames)
	if err != nil {
		slog.Warn("cascade: progress sweep incomplete", "course_id", id, "err", err)
	}

	// Phase 4: drop the course from the list.
	course, err := a.store.RemoveCourse(ctx, id, sess.Name)
	if err != nil {
		if errors.Is(err, store.ErrCourseNotFound) {
			// Raced with another delete; the media cleanup above still stands.
			slog.Warn("cascade: course vanished before final removal", "course_id", id)
		} else {
			return CascadeResult{}, fmt.Errorf("remove course: %w", err)
		}
	}
	return CascadeResult{
		Course:               course,
		DeletedFilesCount:    deletedFiles,
		DeletedProgressCount: deletedProgress,
	}, nil
}

// GetProgress returns a student's progress for one file, defaulting by kind.
func (a *App) GetProgress(ctx context.Context, kind domain.Kind, student, filename string) (domain.Progress, error) {
	if strings.TrimSpace(student) == "" || strings.TrimSpace(filename) == "" {
		return domain.Progress{}, validationErr("student and filename are required")
	}
	return a.store.GetProgress(ctx, kind, student, filename)
}

// PutProgress records a client progress report, overwriting any prior value.
func (a *App) PutProgress(ctx context.Context, kind domain.Kind, student, filename string, value domain.Progress) error {
	if strings.TrimSpace(student) == "" || strings.TrimSpace(filename) == "" {
		return validationErr("student and filename are required")
	}
	return a.store.PutProgress(ctx, kind, student, filename, value)
}

// ResolveDownload translates a storage key into either a local path or a
// redirect URL, depending on the active relay.
func (a *App) ResolveDownload(ctx context.Context, key string) (storage.Target, error) {
	return a.relay.Resolve(ctx, key)
}

// countPDFPages best-effort extracts a page count; unparseable documents
// simply report zero pages.
func countPDFPages(data []byte) int {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		slog.Warn("could not parse pdf for page count", "err", err)
		return 0
	}
	return reader.NumPage()
}
