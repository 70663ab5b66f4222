package inmemdb

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/elimu-cd/elimu/core/rating"
)

type ratingRepository struct {
	db *DB
}

var _ rating.Repository = (*ratingRepository)(nil)

func NewRatingRepository(db *DB) *ratingRepository {
	return &ratingRepository{db: db}
}

func (repo *ratingRepository) CourseExists(ctx context.Context, courseID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	_, ok := repo.db.courses[courseID]
	return ok, nil
}

func (repo *ratingRepository) UpsertRating(ctx context.Context, r rating.Rating) (rating.Rating, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	course, ok := repo.db.courses[r.CourseID]
	if !ok {
		return rating.Rating{}, false, rating.ErrCourseNotFound
	}

	created := true
	for _, existing := range repo.db.ratings {
		if existing.StudentID == r.StudentID && existing.CourseID == r.CourseID {
			existing.Rating = r.Rating
			existing.Review = r.Review
			existing.UpdatedAt = r.UpdatedAt
			r = *existing
			created = false
			break
		}
	}
	if created {
		r.ID = uuid.New().String()
		stored := r
		repo.db.ratings[r.ID] = &stored
	}

	// refresh the aggregate from all rows, mean rounded to 2dp
	sum, total := 0, 0
	for _, cr := range repo.db.ratings {
		if cr.CourseID == r.CourseID {
			sum += cr.Rating
			total++
		}
	}
	course.TotalRatings = total
	course.AverageRating = 0
	if total > 0 {
		course.AverageRating = math.Round(float64(sum)/float64(total)*100) / 100
	}
	return r, created, nil
}

func (repo *ratingRepository) QueryCourseRatings(ctx context.Context, courseID string) ([]rating.Rating, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ratings := make([]rating.Rating, 0)
	for _, r := range repo.db.ratings {
		if r.CourseID == courseID {
			ratings = append(ratings, *r)
		}
	}
	sort.Slice(ratings, func(i, j int) bool { return ratings[i].CreatedAt.After(ratings[j].CreatedAt) })
	return ratings, nil
}
