package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soko/core"
)

// Statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

type (
	Course struct {
		ID          string    `json:"id"`
		TeacherID   string    `json:"teacher_id"`
		Title       string    `json:"title"`
		Slug        string    `json:"slug"`
		Description string    `json:"description"`
		Subject     string    `json:"subject"`
		Level       string    `json:"level"`
		PriceCents  int64     `json:"price_cents"`
		MaxStudents int       `json:"max_students"` // 0 means unlimited
		Status      string    `json:"status"`
		CreatedAt   time.Time `json:"created_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at"` // UTC
	}

	Session struct {
		ID          string    `json:"id"`
		CourseID    string    `json:"course_id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		StartTime   time.Time `json:"start_time"`
		EndTime     time.Time `json:"end_time"`
		PriceCents  int64     `json:"price_cents"`
		IsVirtual   bool      `json:"is_virtual"`
		MeetingLink string    `json:"meeting_link,omitempty"`
		Location    string    `json:"location,omitempty"`
		CreatedAt   time.Time `json:"created_at"` // UTC
	}
)

func (c *Course) IsPublished() bool { return c.Status == StatusPublished }

func (c *Course) IsFree() bool { return c.PriceCents == 0 }

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Subject     string `json:"subject" validate:"required"`
	Level       string `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	PriceCents  int64  `json:"price_cents" validate:"min=0"`
	MaxStudents int    `json:"max_students" validate:"min=0"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Subject = core.CleanString(nc.Subject, true /* lower */)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// Zero-valued fields are left untouched.
type UpdateCourse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
	Level       string `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	PriceCents  *int64 `json:"price_cents" validate:"omitempty,min=0"`
	MaxStudents *int   `json:"max_students" validate:"omitempty,min=0"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	uc.Description = core.CleanString(uc.Description)
	uc.Subject = core.CleanString(uc.Subject, true /* lower */)
	return validate.Struct(uc)
}

// NewSession contains information needed to schedule a new Session on a Course.
type NewSession struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	PriceCents  int64     `json:"price_cents" validate:"min=0"`
	IsVirtual   bool      `json:"is_virtual"`
	MeetingLink string    `json:"meeting_link" validate:"omitempty,url"`
	Location    string    `json:"location"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	ns.Description = core.CleanString(ns.Description)
	ns.Location = core.CleanString(ns.Location)
	return validate.Struct(ns)
}

// GetFilter selects a single course by exactly one of its fields.
type GetFilter struct {
	ID   string
	Slug string
}

type QueryFilter struct {
	Search    string `query:"search"`
	Subject   string `query:"subject"`
	Level     string `query:"level"`
	TeacherID string `query:"teacher_id"`
	Status    string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Subject == "" && qf.Level == "" && qf.TeacherID == "" && qf.Status == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Subject = core.CleanString(qf.Subject, true /* lower */)
}
