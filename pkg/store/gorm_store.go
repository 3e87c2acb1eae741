package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"coursehub/pkg/domain"
)

// CourseModel persists one course-list entry. Rows are ordered by the
// surrogate primary key; CourseID is the length-derived decimal string and
// deliberately not a key, since the scheme can reuse ids after deletions.
type CourseModel struct {
	Seq        uint   `gorm:"primaryKey;autoIncrement"`
	CourseID   string `gorm:"index"`
	Name       string
	Instructor string
	CreatedAt  time.Time
}

// MediaModel persists one media record, keyed by kind plus filename.
type MediaModel struct {
	Kind           string `gorm:"primaryKey"`
	Filename       string `gorm:"primaryKey"`
	LastUpdated    time.Time
	InstructorName string
	CourseID       string `gorm:"index"`
	URL            string
	StorageKey     string
	SizeBytes      int64
	Pages          int
}

// ProgressModel persists one progress value as a JSON column.
type ProgressModel struct {
	Kind     string         `gorm:"primaryKey"`
	Student  string         `gorm:"primaryKey"`
	Filename string         `gorm:"primaryKey"`
	Value    datatypes.JSON `gorm:"type:jsonb"`
}

// GormStore implements Store on Postgres. It expresses the same KV-shaped
// contract relationally; the course list stays a single caller-serialized
// sequence rather than gaining database-level uniqueness guarantees.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the database and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&CourseModel{}, &MediaModel{}, &ProgressModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CourseList returns courses in insertion order.
func (s *GormStore) CourseList(ctx context.Context) ([]domain.Course, error) {
	var rows []CourseModel
	if err := s.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read course list: %w", err)
	}
	out := make([]domain.Course, 0, len(rows))
	for _, row := range rows {
		out = append(out, courseFromModel(row))
	}
	return out, nil
}

// AppendCourse assigns the next length-derived id inside a transaction.
func (s *GormStore) AppendCourse(ctx context.Context, name, instructor string) (domain.Course, error) {
	var course domain.Course
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&CourseModel{}).Count(&count).Error; err != nil {
			return fmt.Errorf("count courses: %w", err)
		}
		var existing int64
		if err := tx.Model(&CourseModel{}).Where("name = ?", name).Count(&existing).Error; err != nil {
			return fmt.Errorf("check course name: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateCourseName
		}
		row := CourseModel{
			CourseID:   strconv.FormatInt(count+1, 10),
			Name:       name,
			Instructor: instructor,
			CreatedAt:  time.Now().UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert course: %w", err)
		}
		course = courseFromModel(row)
		return nil
	})
	if err != nil {
		return domain.Course{}, err
	}
	return course, nil
}

// RemoveCourse deletes the row matching both id and instructor.
func (s *GormStore) RemoveCourse(ctx context.Context, id, instructor string) (domain.Course, error) {
	var row CourseModel
	err := s.db.WithContext(ctx).
		Where("course_id = ? AND instructor = ?", id, instructor).
		Order("seq").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Course{}, ErrCourseNotFound
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("find course: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&CourseModel{}, "seq = ?", row.Seq).Error; err != nil {
		return domain.Course{}, fmt.Errorf("delete course: %w", err)
	}
	return courseFromModel(row), nil
}

// PutMedia upserts by the (kind, filename) composite key.
func (s *GormStore) PutMedia(ctx context.Context, kind domain.Kind, filename string, rec domain.MediaRecord) error {
	row := MediaModel{
		Kind:           string(kind),
		Filename:       filename,
		LastUpdated:    rec.LastUpdated,
		InstructorName: rec.InstructorName,
		CourseID:       rec.CourseID,
		URL:            rec.URL,
		StorageKey:     rec.StorageKey,
		SizeBytes:      rec.SizeBytes,
		Pages:          rec.Pages,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("write media record: %w", err)
	}
	return nil
}

// GetMedia reads one record.
func (s *GormStore) GetMedia(ctx context.Context, kind domain.Kind, filename string) (domain.MediaRecord, bool, error) {
	var row MediaModel
	err := s.db.WithContext(ctx).
		Where("kind = ? AND filename = ?", string(kind), filename).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.MediaRecord{}, false, nil
	}
	if err != nil {
		return domain.MediaRecord{}, false, fmt.Errorf("read media record: %w", err)
	}
	return mediaFromModel(row), true, nil
}

// ListMedia returns records for the kind, optionally filtered by course.
// Rows are schema-validated by the database, so the skipped count is zero.
func (s *GormStore) ListMedia(ctx context.Context, kind domain.Kind, courseID string) ([]domain.MediaRecord, int, error) {
	query := s.db.WithContext(ctx).Where("kind = ?", string(kind))
	if courseID != "" {
		query = query.Where("course_id = ?", courseID)
	}
	var rows []MediaModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list media records: %w", err)
	}
	out := make([]domain.MediaRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, mediaFromModel(row))
	}
	return out, 0, nil
}

// DeleteMedia removes one record.
func (s *GormStore) DeleteMedia(ctx context.Context, kind domain.Kind, filename string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("kind = ? AND filename = ?", string(kind), filename).
		Delete(&MediaModel{})
	if res.Error != nil {
		return false, fmt.Errorf("delete media record: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// PutProgress upserts one progress value.
func (s *GormStore) PutProgress(ctx context.Context, kind domain.Kind, student, filename string, value domain.Progress) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	row := ProgressModel{
		Kind:     string(kind),
		Student:  student,
		Filename: filename,
		Value:    datatypes.JSON(data),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

// GetProgress reads a progress value, defaulting by kind when absent.
func (s *GormStore) GetProgress(ctx context.Context, kind domain.Kind, student, filename string) (domain.Progress, error) {
	var row ProgressModel
	err := s.db.WithContext(ctx).
		Where("kind = ? AND student = ? AND filename = ?", string(kind), student, filename).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DefaultProgress(kind), nil
	}
	if err != nil {
		return domain.Progress{}, fmt.Errorf("read progress: %w", err)
	}
	var value domain.Progress
	if err := json.Unmarshal(row.Value, &value); err != nil {
		return domain.Progress{}, fmt.Errorf("decode progress: %w", err)
	}
	return value, nil
}

// DeleteProgressForFiles removes progress rows for the given filenames
// across all kinds. The relational layout makes this an indexed delete
// instead of a keyspace sweep.
func (s *GormStore) DeleteProgressForFiles(ctx context.Context, filenames []string) (int, error) {
	if len(filenames) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("filename IN ?", filenames).
		Delete(&ProgressModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete progress rows: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func courseFromModel(row CourseModel) domain.Course {
	return domain.Course{
		ID:         row.CourseID,
		Name:       row.Name,
		Instructor: row.Instructor,
		CreatedAt:  row.CreatedAt,
	}
}

func mediaFromModel(row MediaModel) domain.MediaRecord {
	return domain.MediaRecord{
		Filename:       row.Filename,
		Filetype:       domain.Kind(row.Kind),
		LastUpdated:    row.LastUpdated,
		InstructorName: row.InstructorName,
		CourseID:       row.CourseID,
		URL:            row.URL,
		StorageKey:     row.StorageKey,
		SizeBytes:      row.SizeBytes,
		Pages:          row.Pages,
	}
}
