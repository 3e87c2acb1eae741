package store

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"coursehub/pkg/domain"
)

// MemoryStore keeps all metadata in-process. It is the development and test
// backend, and the fallback when the configured remote store is unreachable.
type MemoryStore struct {
	mu       sync.RWMutex
	courses  []domain.Course
	media    map[domain.Kind]map[string]domain.MediaRecord
	progress map[string]domain.Progress // key: <kind>:<student>:<filename>
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	media := make(map[domain.Kind]map[string]domain.MediaRecord, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		media[kind] = make(map[string]domain.MediaRecord)
	}
	return &MemoryStore{
		courses:  []domain.Course{},
		media:    media,
		progress: make(map[string]domain.Progress),
	}
}

// CourseList returns a copy of the course list in insertion order.
func (m *MemoryStore) CourseList(_ context.Context) ([]domain.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Course, len(m.courses))
	copy(out, m.courses)
	return out, nil
}

// AppendCourse adds a course with the next length-derived id. The mutex
// serializes the read-modify-write, so duplicate ids cannot be assigned
// through this adapter.
func (m *MemoryStore) AppendCourse(_ context.Context, name, instructor string) (domain.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.courses {
		if c.Name == name {
			return domain.Course{}, ErrDuplicateCourseName
		}
	}
	course := domain.Course{
		ID:         strconv.Itoa(len(m.courses) + 1),
		Name:       name,
		Instructor: instructor,
		CreatedAt:  time.Now().UTC(),
	}
	m.courses = append(m.courses, course)
	return course, nil
}

// RemoveCourse removes the course matching both id and owning instructor.
func (m *MemoryStore) RemoveCourse(_ context.Context, id, instructor string) (domain.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.courses {
		if c.ID == id && c.Instructor == instructor {
			m.courses = append(m.courses[:i], m.courses[i+1:]...)
			return c, nil
		}
	}
	return domain.Course{}, ErrCourseNotFound
}

// PutMedia stores or replaces a record in the kind's collection.
func (m *MemoryStore) PutMedia(_ context.Context, kind domain.Kind, filename string, rec domain.MediaRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media[kind][filename] = rec
	return nil
}

// GetMedia retrieves a record by filename.
func (m *MemoryStore) GetMedia(_ context.Context, kind domain.Kind, filename string) (domain.MediaRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.media[kind][filename]
	return rec, ok, nil
}

// ListMedia returns the kind's records, optionally filtered by course id.
// The in-memory representation cannot hold malformed entries, so the
// skipped count is always zero here.
func (m *MemoryStore) ListMedia(_ context.Context, kind domain.Kind, courseID string) ([]domain.MediaRecord, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.MediaRecord, 0, len(m.media[kind]))
	for _, rec := range m.media[kind] {
		if courseID != "" && rec.CourseID != courseID {
			continue
		}
		out = append(out, rec)
	}
	return out, 0, nil
}

// DeleteMedia removes a record and reports whether it existed.
func (m *MemoryStore) DeleteMedia(_ context.Context, kind domain.Kind, filename string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.media[kind][filename]; !ok {
		return false, nil
	}
	delete(m.media[kind], filename)
	return true, nil
}

// PutProgress stores or replaces a progress value.
func (m *MemoryStore) PutProgress(_ context.Context, kind domain.Kind, student, filename string, value domain.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[progressKey(kind, student, filename)] = value
	return nil
}

// GetProgress returns the stored value or the kind's default.
func (m *MemoryStore) GetProgress(_ context.Context, kind domain.Kind, student, filename string) (domain.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if value, ok := m.progress[progressKey(kind, student, filename)]; ok {
		return value, nil
	}
	return domain.DefaultProgress(kind), nil
}

// DeleteProgressForFiles sweeps every progress key across all kinds and
// removes those referencing one of the given filenames.
func (m *MemoryStore) DeleteProgressForFiles(_ context.Context, filenames []string) (int, error) {
	if len(filenames) == 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.progress {
		for _, filename := range filenames {
			if strings.HasSuffix(key, ":"+filename) {
				delete(m.progress, key)
				removed++
				break
			}
		}
	}
	return removed, nil
}

func progressKey(kind domain.Kind, student, filename string) string {
	return string(kind) + ":" + student + ":" + filename
}
