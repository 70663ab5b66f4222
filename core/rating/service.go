package rating

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/enrollment"
)

var ErrCourseNotFound = errors.New("course not found")

type (
	// Repository implements rating storage. UpsertRating runs in a transaction
	// holding the course row lock: it writes the rating, then recomputes
	// average_rating (mean over all rows, 2dp) and total_ratings on the course.
	Repository interface {
		CourseExists(ctx context.Context, courseID string) (bool, error)
		// UpsertRating reports whether a new row was created.
		UpsertRating(ctx context.Context, r Rating) (Rating, bool, error)
		QueryCourseRatings(ctx context.Context, courseID string) ([]Rating, error)
	}

	Service struct {
		repo   Repository
		enrSvc *enrollment.Service
	}
)

func NewService(repo Repository, enrSvc *enrollment.Service) *Service {
	return &Service{repo: repo, enrSvc: enrSvc}
}

// Rate upserts the student's rating for a course they are actively enrolled in
// and refreshes the course aggregate. The bool reports creation (vs update).
func (svc *Service) Rate(ctx context.Context, studentID, courseID string, nr NewRating) (Rating, bool, error) {
	exists, err := svc.repo.CourseExists(ctx, courseID)
	if err != nil {
		return Rating{}, false, errors.Wrap(err, "checking course")
	}
	if !exists {
		return Rating{}, false, ErrCourseNotFound
	}

	enrolled, err := svc.enrSvc.IsActivelyEnrolled(ctx, studentID, courseID)
	if err != nil {
		return Rating{}, false, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Rating{}, false, core.NewValidationError(errors.New("Must be enrolled to rate"))
	}

	now := time.Now().UTC()
	r := Rating{
		StudentID: studentID,
		CourseID:  courseID,
		Rating:    nr.Rating,
		Review:    nr.Review,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.UpsertRating(ctx, r)
}

// CourseExists reports whether the course is known.
func (svc *Service) CourseExists(ctx context.Context, courseID string) (bool, error) {
	return svc.repo.CourseExists(ctx, courseID)
}

// QueryCourseRatings returns all ratings for a course.
func (svc *Service) QueryCourseRatings(ctx context.Context, courseID string) ([]Rating, error) {
	return svc.repo.QueryCourseRatings(ctx, courseID)
}
