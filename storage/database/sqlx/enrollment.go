package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/enrollment"
)

type enrollmentRow struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	CourseID    string    `db:"course_id"`
	IsActive    bool      `db:"is_active"`
	EnrolledAt  time.Time `db:"enrolled_at"`
	CompletedAt null.Time `db:"completed_at"`
}

func (r enrollmentRow) toEnrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:          r.ID,
		StudentID:   r.StudentID,
		CourseID:    r.CourseID,
		IsActive:    r.IsActive,
		EnrolledAt:  r.EnrolledAt,
		CompletedAt: r.CompletedAt.Time,
	}
}

var enrollmentColumns = []string{"id", "student_id", "course_id", "is_active", "enrolled_at", "completed_at"}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

// Enroll admits the student while holding the course row lock, so the capacity
// check and the occupancy recount cannot interleave with a concurrent enroll.
func (repo *enrollmentRepository) Enroll(ctx context.Context, studentID, courseID string) (enrollment.Enrollment, error) {
	var enr enrollment.Enrollment
	err := runInTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var course struct {
			Status      string `db:"status"`
			MaxStudents int    `db:"max_students"`
		}
		err := tx.GetContext(ctx, &course,
			"SELECT status, max_students FROM courses WHERE id = $1 FOR UPDATE", courseID)
		if err != nil {
			return trapNoRowsErr(err, enrollment.ErrCourseNotFound)
		}
		if course.Status != catalog.StatusPublished {
			return enrollment.ErrCourseNotFound
		}

		var existing enrollmentRow
		err = tx.GetContext(ctx, &existing,
			"SELECT id, student_id, course_id, is_active, enrolled_at, completed_at "+
				"FROM course_enrollments WHERE student_id = $1 AND course_id = $2",
			studentID, courseID)
		found := err == nil
		if err != nil && errors.Cause(err) != sql.ErrNoRows {
			return errors.Wrap(err, "finding enrollment")
		}
		if found && existing.IsActive {
			return enrollment.ErrAlreadyEnrolled
		}

		var active int
		if err = tx.GetContext(ctx, &active,
			"SELECT COUNT(*) FROM course_enrollments WHERE course_id = $1 AND is_active", courseID); err != nil {
			return errors.Wrap(err, "counting enrollments")
		}
		if active >= course.MaxStudents {
			return enrollment.ErrCourseFull
		}

		now := time.Now().UTC()
		if found {
			if _, err = tx.ExecContext(ctx,
				"UPDATE course_enrollments SET is_active = TRUE, enrolled_at = $1 WHERE id = $2",
				now, existing.ID); err != nil {
				return errors.Wrap(err, "reactivating enrollment")
			}
			existing.IsActive = true
			existing.EnrolledAt = now
			enr = existing.toEnrollment()
		} else {
			enr = enrollment.Enrollment{
				ID:         uuid.New().String(),
				StudentID:  studentID,
				CourseID:   courseID,
				IsActive:   true,
				EnrolledAt: now,
			}
			query, args, err := psql.Insert("course_enrollments").
				Columns(enrollmentColumns[:len(enrollmentColumns)-1]...).
				Values(enr.ID, enr.StudentID, enr.CourseID, enr.IsActive, enr.EnrolledAt).
				ToSql()
			if err != nil {
				return errors.Wrap(err, "building query")
			}
			if _, err = tx.ExecContext(ctx, query, args...); err != nil {
				return errors.Wrap(err, "inserting enrollment")
			}
		}
		return recountStudents(ctx, tx, courseID)
	})
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	return enr, nil
}

func (repo *enrollmentRepository) Unenroll(ctx context.Context, studentID, courseID string) error {
	return runInTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var id string
		err := tx.GetContext(ctx, &id, "SELECT id FROM courses WHERE id = $1 FOR UPDATE", courseID)
		if err != nil {
			return trapNoRowsErr(err, enrollment.ErrNotFound)
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE course_enrollments SET is_active = FALSE WHERE student_id = $1 AND course_id = $2 AND is_active",
			studentID, courseID)
		if err != nil {
			return errors.Wrap(err, "deactivating enrollment")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return enrollment.ErrNotFound
		}
		return recountStudents(ctx, tx, courseID)
	})
}

func (repo *enrollmentRepository) QueryStudentEnrollments(ctx context.Context, studentID string) ([]enrollment.Enrollment, error) {
	query, args, err := psql.Select(enrollmentColumns...).
		From("course_enrollments").
		Where(sq.Eq{"student_id": studentID, "is_active": true}).
		OrderBy("enrolled_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []enrollmentRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, row.toEnrollment())
	}
	return enrs, nil
}

func (repo *enrollmentRepository) IsActivelyEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	var enrolled bool
	err := repo.db.GetContext(ctx, &enrolled,
		"SELECT EXISTS (SELECT 1 FROM course_enrollments WHERE student_id = $1 AND course_id = $2 AND is_active)",
		studentID, courseID)
	return enrolled, errors.Wrap(err, "checking enrollment")
}

// recountStudents re-derives current_students from the active rows.
func recountStudents(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE courses SET current_students = "+
			"(SELECT COUNT(*) FROM course_enrollments WHERE course_id = $1 AND is_active) WHERE id = $1",
		courseID)
	return errors.Wrap(err, "recounting students")
}
