package domain

import "time"

// Kind identifies one of the four independent media collections.
type Kind string

const (
	KindVideo Kind = "video"
	KindPDF   Kind = "pdf"
	KindDocx  Kind = "docx"
	KindAudio Kind = "audio"
)

// Kinds lists every media kind in a stable order.
var Kinds = []Kind{KindVideo, KindPDF, KindDocx, KindAudio}

type Role string

const (
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// ParseRole validates a client-supplied role string.
func ParseRole(role string) (Role, bool) {
	switch Role(role) {
	case RoleInstructor:
		return RoleInstructor, true
	case RoleStudent:
		return RoleStudent, true
	default:
		return "", false
	}
}

// Session is the minimal named-session identity: a display name plus a role.
type Session struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Course is an entry in the single ordered course list. IDs are decimal
// strings assigned from the list length at creation time.
type Course struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Instructor string    `json:"instructor"`
	CreatedAt  time.Time `json:"created_at"`
}

// MediaRecord is the metadata stored for one uploaded file. Filename is the
// collection key and is unique only within its own kind.
type MediaRecord struct {
	Filename       string    `json:"filename"`
	Filetype       Kind      `json:"filetype"`
	LastUpdated    time.Time `json:"last_updated"`
	InstructorName string    `json:"instructor_name"`
	CourseID       string    `json:"course_id"`
	URL            string    `json:"url"`
	StorageKey     string    `json:"storage_key,omitempty"`
	SizeBytes      int64     `json:"size_bytes,omitempty"`
	Pages          int       `json:"pages,omitempty"`
}

// Progress is a per-student-per-file progress value. Population depends on
// the media kind: Percent for video/audio, CurrentPage and
// MaxProgressPercent for pdf, MaxProgressPercent alone for docx.
type Progress struct {
	Percent            float64 `json:"percent,omitempty"`
	CurrentPage        int     `json:"currentPage,omitempty"`
	MaxProgressPercent float64 `json:"maxProgressPercent,omitempty"`
}

// DefaultProgress returns the value reported when no progress record exists
// for a file. PDF page numbering starts at 1.
func DefaultProgress(kind Kind) Progress {
	if kind == KindPDF {
		return Progress{CurrentPage: 1}
	}
	return Progress{}
}
