package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) Enroll(ctx context.Context, studentID, courseID string) (enrollment.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	course, ok := repo.db.courses[courseID]
	if !ok || course.Status != catalog.StatusPublished {
		return enrollment.Enrollment{}, enrollment.ErrCourseNotFound
	}

	var existing *enrollment.Enrollment
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.CourseID == courseID {
			existing = enr
			break
		}
	}
	if existing != nil && existing.IsActive {
		return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
	}
	if repo.countActive(courseID) >= course.MaxStudents {
		return enrollment.Enrollment{}, enrollment.ErrCourseFull
	}

	now := time.Now().UTC()
	if existing != nil {
		existing.IsActive = true
		existing.EnrolledAt = now
	} else {
		existing = &enrollment.Enrollment{
			ID:         uuid.New().String(),
			StudentID:  studentID,
			CourseID:   courseID,
			IsActive:   true,
			EnrolledAt: now,
		}
		repo.db.enrollments[existing.ID] = existing
	}
	course.CurrentStudents = repo.countActive(courseID)
	return *existing, nil
}

func (repo *enrollmentRepository) Unenroll(ctx context.Context, studentID, courseID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	course, ok := repo.db.courses[courseID]
	if !ok {
		return enrollment.ErrNotFound
	}
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.CourseID == courseID && enr.IsActive {
			enr.IsActive = false
			course.CurrentStudents = repo.countActive(courseID)
			return nil
		}
	}
	return enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryStudentEnrollments(ctx context.Context, studentID string) ([]enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrs := make([]enrollment.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.IsActive {
			enrs = append(enrs, *enr)
		}
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].EnrolledAt.After(enrs[j].EnrolledAt) })
	return enrs, nil
}

func (repo *enrollmentRepository) IsActivelyEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.isActivelyEnrolled(studentID, courseID), nil
}

// countActive counts the active enrollments of a course. Callers hold the lock.
func (repo *enrollmentRepository) countActive(courseID string) int {
	n := 0
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID && enr.IsActive {
			n++
		}
	}
	return n
}

// isActivelyEnrolled is shared with the other repositories for their
// enrollment-gated list visibility. Callers hold the lock.
func (db *DB) isActivelyEnrolled(studentID, courseID string) bool {
	for _, enr := range db.enrollments {
		if enr.StudentID == studentID && enr.CourseID == courseID && enr.IsActive {
			return true
		}
	}
	return false
}
