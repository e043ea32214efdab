package enroll

import (
	"time"
)

// Enrollment statuses
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusCompleted = "completed"
)

type (
	// Enrollment ties a student to a course. A student enrolls in a course at
	// most once.
	Enrollment struct {
		ID              string    `json:"id"`
		StudentID       string    `json:"student_id"`
		CourseID        string    `json:"course_id"`
		Status          string    `json:"status"`
		PaymentIntentID string    `json:"payment_intent_id,omitempty"`
		EnrolledAt      time.Time `json:"enrolled_at"` // UTC
		UpdatedAt       time.Time `json:"updated_at"`  // UTC
	}

	SessionEnrollment struct {
		ID              string    `json:"id"`
		StudentID       string    `json:"student_id"`
		SessionID       string    `json:"session_id"`
		Status          string    `json:"status"`
		PaymentIntentID string    `json:"payment_intent_id,omitempty"`
		EnrolledAt      time.Time `json:"enrolled_at"` // UTC
	}

	// CourseProgress tracks a student's advancement through an enrollment.
	CourseProgress struct {
		ID                string    `json:"id"`
		EnrollmentID      string    `json:"enrollment_id"`
		CompletedSessions int       `json:"completed_sessions"`
		CompletionPct     int       `json:"completion_pct"`
		UpdatedAt         time.Time `json:"updated_at"` // UTC
	}
)

func (e *Enrollment) IsApproved() bool { return e.Status == StatusApproved }

// GetFilter selects a single enrollment either by ID or by the
// (StudentID, CourseID) pair.
type GetFilter struct {
	ID        string
	StudentID string
	CourseID  string
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	CourseID  string `query:"course_id"`
	Status    string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.CourseID == "" && qf.Status == ""
}
