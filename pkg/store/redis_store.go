package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"coursehub/pkg/domain"
)

const (
	coursesKey        = "courses"
	progressKeyPrefix = "progress:"
)

// RedisStore keeps metadata in a Redis-compatible key-value service.
// Media collections are hashes keyed by filename, the course list is a JSON
// array under a single key, and progress records are individual string keys
// under the progress: prefix.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and verifies the server is reachable.
func NewRedisStore(ctx context.Context, addr, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// CourseList reads the course list, initializing the key to an empty JSON
// array on first read.
func (s *RedisStore) CourseList(ctx context.Context) ([]domain.Course, error) {
	raw, err := s.client.Get(ctx, coursesKey).Result()
	if err == redis.Nil {
		if err := s.client.SetNX(ctx, coursesKey, "[]", 0).Err(); err != nil {
			return nil, fmt.Errorf("init course list: %w", err)
		}
		return []domain.Course{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read course list: %w", err)
	}
	var courses []domain.Course
	if err := json.Unmarshal([]byte(raw), &courses); err != nil {
		return nil, fmt.Errorf("decode course list: %w", err)
	}
	if courses == nil {
		courses = []domain.Course{}
	}
	return courses, nil
}

// AppendCourse assigns the next length-derived id and writes the list back.
// The read-modify-write is not atomic across processes; this mirrors the
// single-writer deployment the service is built for.
func (s *RedisStore) AppendCourse(ctx context.Context, name, instructor string) (domain.Course, error) {
	courses, err := s.CourseList(ctx)
	if err != nil {
		return domain.Course{}, err
	}
	for _, c := range courses {
		if c.Name == name {
			return domain.Course{}, ErrDuplicateCourseName
		}
	}
	course := domain.Course{
		ID:         strconv.Itoa(len(courses) + 1),
		Name:       name,
		Instructor: instructor,
		CreatedAt:  time.Now().UTC(),
	}
	courses = append(courses, course)
	if err := s.writeCourseList(ctx, courses); err != nil {
		return domain.Course{}, err
	}
	return course, nil
}

// RemoveCourse drops the course matching both id and instructor.
func (s *RedisStore) RemoveCourse(ctx context.Context, id, instructor string) (domain.Course, error) {
	courses, err := s.CourseList(ctx)
	if err != nil {
		return domain.Course{}, err
	}
	for i, c := range courses {
		if c.ID == id && c.Instructor == instructor {
			courses = append(courses[:i], courses[i+1:]...)
			if err := s.writeCourseList(ctx, courses); err != nil {
				return domain.Course{}, err
			}
			return c, nil
		}
	}
	return domain.Course{}, ErrCourseNotFound
}

func (s *RedisStore) writeCourseList(ctx context.Context, courses []domain.Course) error {
	data, err := json.Marshal(courses)
	if err != nil {
		return fmt.Errorf("encode course list: %w", err)
	}
	if err := s.client.Set(ctx, coursesKey, data, 0).Err(); err != nil {
		return fmt.Errorf("write course list: %w", err)
	}
	return nil
}

// PutMedia upserts a record into the kind's hash.
func (s *RedisStore) PutMedia(ctx context.Context, kind domain.Kind, filename string, rec domain.MediaRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode media record: %w", err)
	}
	if err := s.client.HSet(ctx, CollectionName(kind), filename, data).Err(); err != nil {
		return fmt.Errorf("write media record: %w", err)
	}
	return nil
}

// GetMedia reads a record from the kind's hash.
func (s *RedisStore) GetMedia(ctx context.Context, kind domain.Kind, filename string) (domain.MediaRecord, bool, error) {
	raw, err := s.client.HGet(ctx, CollectionName(kind), filename).Result()
	if err == redis.Nil {
		return domain.MediaRecord{}, false, nil
	}
	if err != nil {
		return domain.MediaRecord{}, false, fmt.Errorf("read media record: %w", err)
	}
	var rec domain.MediaRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.MediaRecord{}, false, fmt.Errorf("decode media record: %w", err)
	}
	return rec, true, nil
}

// ListMedia returns every well-formed record in the kind's hash. Entries
// that fail to decode are counted and skipped rather than failing the list.
func (s *RedisStore) ListMedia(ctx context.Context, kind domain.Kind, courseID string) ([]domain.MediaRecord, int, error) {
	raw, err := s.client.HGetAll(ctx, CollectionName(kind)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("list media records: %w", err)
	}
	out := make([]domain.MediaRecord, 0, len(raw))
	skipped := 0
	for _, value := range raw {
		var rec domain.MediaRecord
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			skipped++
			continue
		}
		if courseID != "" && rec.CourseID != courseID {
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

// DeleteMedia removes a record from the kind's hash.
func (s *RedisStore) DeleteMedia(ctx context.Context, kind domain.Kind, filename string) (bool, error) {
	removed, err := s.client.HDel(ctx, CollectionName(kind), filename).Result()
	if err != nil {
		return false, fmt.Errorf("delete media record: %w", err)
	}
	return removed > 0, nil
}

// PutProgress writes a progress value under its own key.
func (s *RedisStore) PutProgress(ctx context.Context, kind domain.Kind, student, filename string, value domain.Progress) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.client.Set(ctx, redisProgressKey(kind, student, filename), data, 0).Err(); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

// GetProgress reads a progress value, defaulting by kind when absent.
func (s *RedisStore) GetProgress(ctx context.Context, kind domain.Kind, student, filename string) (domain.Progress, error) {
	raw, err := s.client.Get(ctx, redisProgressKey(kind, student, filename)).Result()
	if err == redis.Nil {
		return domain.DefaultProgress(kind), nil
	}
	if err != nil {
		return domain.Progress{}, fmt.Errorf("read progress: %w", err)
	}
	var value domain.Progress
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return domain.Progress{}, fmt.Errorf("decode progress: %w", err)
	}
	return value, nil
}

// DeleteProgressForFiles SCANs the progress keyspace and deletes keys whose
// filename suffix matches one of the given names. O(total progress keys).
func (s *RedisStore) DeleteProgressForFiles(ctx context.Context, filenames []string) (int, error) {
	if len(filenames) == 0 {
		return 0, nil
	}
	removed := 0
	iter := s.client.Scan(ctx, 0, progressKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		for _, filename := range filenames {
			if !strings.HasSuffix(key, ":"+filename) {
				continue
			}
			n, err := s.client.Del(ctx, key).Result()
			if err != nil {
				return removed, fmt.Errorf("delete progress key: %w", err)
			}
			removed += int(n)
			break
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan progress keys: %w", err)
	}
	return removed, nil
}

func redisProgressKey(kind domain.Kind, student, filename string) string {
	return progressKeyPrefix + string(kind) + ":" + student + ":" + filename
}
