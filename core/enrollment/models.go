package enrollment

import "time"

// Enrollment is the student/course membership relation. Rows are deactivated on
// unenroll, never deleted.
type Enrollment struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	CourseID    string    `json:"course_id"`
	IsActive    bool      `json:"is_active"`
	EnrolledAt  time.Time `json:"enrolled_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}
