package enrollment

import (
	"context"

	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core"
)

var (
	// errors
	ErrNotFound        = errors.New("enrollment not found")
	ErrCourseNotFound  = errors.New("course not found")
	ErrCourseFull      = errors.New("course is full")
	ErrAlreadyEnrolled = errors.New("already enrolled")
)

type (
	// Repository implements the storage side of enrollment. Enroll and Unenroll
	// are atomic: the course row is locked, the membership row written and
	// current_students re-derived from the active rows in a single transaction,
	// so the occupancy counter always equals the active row count.
	Repository interface {
		// Enroll creates or reactivates the (student, course) row and bumps the
		// course occupancy. The course must be published and below capacity.
		Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error)
		// Unenroll deactivates the active (student, course) row and recounts.
		Unenroll(ctx context.Context, studentID, courseID string) error
		QueryStudentEnrollments(ctx context.Context, studentID string) ([]Enrollment, error)
		IsActivelyEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Enroll enrolls the student into a published course with free capacity.
func (svc *Service) Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	enr, err := svc.repo.Enroll(ctx, studentID, courseID)
	switch errors.Cause(err) {
	case nil:
		return enr, nil
	case ErrCourseFull:
		return Enrollment{}, core.NewValidationError(errors.New("Course is full"))
	case ErrAlreadyEnrolled:
		return Enrollment{}, core.NewValidationError(errors.New("Already enrolled"))
	default:
		return Enrollment{}, err
	}
}

// Unenroll deactivates the student's active enrollment.
func (svc *Service) Unenroll(ctx context.Context, studentID, courseID string) error {
	return svc.repo.Unenroll(ctx, studentID, courseID)
}

// QueryMine returns the caller's active enrollments.
func (svc *Service) QueryMine(ctx context.Context, studentID string) ([]Enrollment, error) {
	return svc.repo.QueryStudentEnrollments(ctx, studentID)
}

// IsActivelyEnrolled reports whether the student holds an active enrollment in
// the course. Other domains use this as their read-access gate.
func (svc *Service) IsActivelyEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	return svc.repo.IsActivelyEnrolled(ctx, studentID, courseID)
}
