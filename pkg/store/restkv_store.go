package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coursehub/pkg/domain"
)

// RestKVStore speaks to an Upstash-style REST key-value service: each Redis
// command is POSTed as a JSON array to the base URL with a bearer token.
//
// The REST protocol returns hash contents as a flattened field/value list
// rather than a mapping; this adapter normalizes that difference so callers
// see the same contract as the native Redis adapter.
type RestKVStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewRestKVStore constructs the client and verifies the endpoint responds.
func NewRestKVStore(ctx context.Context, baseURL, token string) (*RestKVStore, error) {
	s := &RestKVStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	if _, err := s.command(ctx, "PING"); err != nil {
		return nil, fmt.Errorf("ping kv endpoint: %w", err)
	}
	return s, nil
}

// command executes one Redis command over REST and returns the raw result.
func (s *RestKVStore) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var parsed struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode kv response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("kv command failed: %s", parsed.Error)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("kv command failed: %s", resp.Status)
	}
	return parsed.Result, nil
}

func (s *RestKVStore) stringResult(ctx context.Context, args ...any) (string, bool, error) {
	raw, err := s.command(ctx, args...)
	if err != nil {
		return "", false, err
	}
	if string(raw) == "null" {
		return "", false, nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false, fmt.Errorf("decode kv result: %w", err)
	}
	return value, true, nil
}

func (s *RestKVStore) intResult(ctx context.Context, args ...any) (int64, error) {
	raw, err := s.command(ctx, args...)
	if err != nil {
		return 0, err
	}
	var value int64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("decode kv result: %w", err)
	}
	return value, nil
}

// CourseList reads the course list, initializing on first read.
func (s *RestKVStore) CourseList(ctx context.Context) ([]domain.Course, error) {
	raw, ok, err := s.stringResult(ctx, "GET", coursesKey)
	if err != nil {
		return nil, fmt.Errorf("read course list: %w", err)
	}
	if !ok {
		if _, err := s.command(ctx, "SET", coursesKey, "[]", "NX"); err != nil {
			return nil, fmt.Errorf("init course list: %w", err)
		}
		return []domain.Course{}, nil
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

// AppendCourse performs the same non-atomic read-modify-write as the Redis
// adapter; the REST protocol has no multi-key transaction to lean on.
func (s *RestKVStore) AppendCourse(ctx context.Context, name, instructor string) (domain.Course, error) {
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
func (s *RestKVStore) RemoveCourse(ctx context.Context, id, instructor string) (domain.Course, error) {
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

func (s *RestKVStore) writeCourseList(ctx context.Context, courses []domain.Course) error {
	data, err := json.Marshal(courses)
	if err != nil {
		return fmt.Errorf("encode course list: %w", err)
	}
	if _, err := s.command(ctx, "SET", coursesKey, string(data)); err != nil {
		return fmt.Errorf("write course list: %w", err)
	}
	return nil
}

// PutMedia upserts a record field in the kind's hash.
func (s *RestKVStore) PutMedia(ctx context.Context, kind domain.Kind, filename string, rec domain.MediaRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode media record: %w", err)
	}
	if _, err := s.command(ctx, "HSET", CollectionName(kind), filename, string(data)); err != nil {
		return fmt.Errorf("write media record: %w", err)
	}
	return nil
}

// GetMedia reads one record field from the kind's hash.
func (s *RestKVStore) GetMedia(ctx context.Context, kind domain.Kind, filename string) (domain.MediaRecord, bool, error) {
	raw, ok, err := s.stringResult(ctx, "HGET", CollectionName(kind), filename)
	if err != nil {
		return domain.MediaRecord{}, false, fmt.Errorf("read media record: %w", err)
	}
	if !ok {
		return domain.MediaRecord{}, false, nil
	}
	var rec domain.MediaRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.MediaRecord{}, false, fmt.Errorf("decode media record: %w", err)
	}
	return rec, true, nil
}

// ListMedia fetches the whole hash. HGETALL arrives as a flat
// [field, value, field, value, ...] list and is normalized here; malformed
// values are counted and skipped.
func (s *RestKVStore) ListMedia(ctx context.Context, kind domain.Kind, courseID string) ([]domain.MediaRecord, int, error) {
	raw, err := s.command(ctx, "HGETALL", CollectionName(kind))
	if err != nil {
		return nil, 0, fmt.Errorf("list media records: %w", err)
	}
	var flat []string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, 0, fmt.Errorf("decode media list: %w", err)
	}
	out := make([]domain.MediaRecord, 0, len(flat)/2)
	skipped := 0
	for i := 0; i+1 < len(flat); i += 2 {
		var rec domain.MediaRecord
		if err := json.Unmarshal([]byte(flat[i+1]), &rec); err != nil {
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

// DeleteMedia removes one record field.
func (s *RestKVStore) DeleteMedia(ctx context.Context, kind domain.Kind, filename string) (bool, error) {
	removed, err := s.intResult(ctx, "HDEL", CollectionName(kind), filename)
	if err != nil {
		return false, fmt.Errorf("delete media record: %w", err)
	}
	return removed > 0, nil
}

// PutProgress writes a progress value under its own key.
func (s *RestKVStore) PutProgress(ctx context.Context, kind domain.Kind, student, filename string, value domain.Progress) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if _, err := s.command(ctx, "SET", redisProgressKey(kind, student, filename), string(data)); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

// GetProgress reads a progress value, defaulting by kind when absent.
func (s *RestKVStore) GetProgress(ctx context.Context, kind domain.Kind, student, filename string) (domain.Progress, error) {
	raw, ok, err := s.stringResult(ctx, "GET", redisProgressKey(kind, student, filename))
	if err != nil {
		return domain.Progress{}, fmt.Errorf("read progress: %w", err)
	}
	if !ok {
		return domain.DefaultProgress(kind), nil
	}
	var value domain.Progress
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return domain.Progress{}, fmt.Errorf("decode progress: %w", err)
	}
	return value, nil
}

// DeleteProgressForFiles iterates SCAN cursors over the progress keyspace
// and deletes suffix matches.
func (s *RestKVStore) DeleteProgressForFiles(ctx context.Context, filenames []string) (int, error) {
	if len(filenames) == 0 {
		return 0, nil
	}
	removed := 0
	cursor := "0"
	for {
		raw, err := s.command(ctx, "SCAN", cursor, "MATCH", progressKeyPrefix+"*", "COUNT", "100")
		if err != nil {
			return removed, fmt.Errorf("scan progress keys: %w", err)
		}
		var page []json.RawMessage
		if err := json.Unmarshal(raw, &page); err != nil || len(page) != 2 {
			return removed, fmt.Errorf("decode scan result: %w", err)
		}
		if err := json.Unmarshal(page[0], &cursor); err != nil {
			return removed, fmt.Errorf("decode scan cursor: %w", err)
		}
		var keys []string
		if err := json.Unmarshal(page[1], &keys); err != nil {
			return removed, fmt.Errorf("decode scan keys: %w", err)
		}
		for _, key := range keys {
			for _, filename := range filenames {
				if !strings.HasSuffix(key, ":"+filename) {
					continue
				}
				n, err := s.intResult(ctx, "DEL", key)
				if err != nil {
					return removed, fmt.Errorf("delete progress key: %w", err)
				}
				removed += int(n)
				break
			}
		}
		if cursor == "0" {
			return removed, nil
		}
	}
}
