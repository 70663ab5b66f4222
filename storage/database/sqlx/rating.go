package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core/rating"
)

type ratingRow struct {
	ID        string    `db:"id"`
	StudentID string    `db:"student_id"`
	CourseID  string    `db:"course_id"`
	Rating    int       `db:"rating"`
	Review    string    `db:"review"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

var ratingColumns = []string{"id", "student_id", "course_id", "rating", "review", "created_at", "updated_at"}

type ratingRepository struct {
	db *sqlx.DB
}

var _ rating.Repository = (*ratingRepository)(nil)

func NewRatingRepository(db *sqlx.DB) *ratingRepository {
	return &ratingRepository{db: db}
}

func (repo *ratingRepository) CourseExists(ctx context.Context, courseID string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)", courseID)
	return exists, errors.Wrap(err, "checking course")
}

// UpsertRating writes the rating and refreshes the course aggregate while
// holding the course row lock.
func (repo *ratingRepository) UpsertRating(ctx context.Context, r rating.Rating) (rating.Rating, bool, error) {
	var created bool
	err := runInTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var courseID string
		err := tx.GetContext(ctx, &courseID,
			"SELECT id FROM courses WHERE id = $1 FOR UPDATE", r.CourseID)
		if err != nil {
			return trapNoRowsErr(err, rating.ErrCourseNotFound)
		}

		var existing ratingRow
		err = tx.GetContext(ctx, &existing,
			"SELECT id, student_id, course_id, rating, review, created_at, updated_at "+
				"FROM course_ratings WHERE student_id = $1 AND course_id = $2",
			r.StudentID, r.CourseID)
		if err != nil && errors.Cause(err) != sql.ErrNoRows {
			return errors.Wrap(err, "finding rating")
		}

		if err == nil {
			r.ID = existing.ID
			r.CreatedAt = existing.CreatedAt
			if _, err = tx.ExecContext(ctx,
				"UPDATE course_ratings SET rating = $1, review = $2, updated_at = $3 WHERE id = $4",
				r.Rating, r.Review, r.UpdatedAt, r.ID); err != nil {
				return errors.Wrap(err, "updating rating")
			}
		} else {
			created = true
			r.ID = uuid.New().String()
			query, args, err := psql.Insert("course_ratings").
				Columns(ratingColumns...).
				Values(r.ID, r.StudentID, r.CourseID, r.Rating, r.Review, r.CreatedAt, r.UpdatedAt).
				ToSql()
			if err != nil {
				return errors.Wrap(err, "building query")
			}
			if _, err = tx.ExecContext(ctx, query, args...); err != nil {
				return errors.Wrap(err, "inserting rating")
			}
		}

		// refresh the aggregate from all rows, mean rounded to 2dp
		_, err = tx.ExecContext(ctx,
			"UPDATE courses SET average_rating = agg.avg, total_ratings = agg.total FROM ("+
				"SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0) AS avg, COUNT(*) AS total "+
				"FROM course_ratings WHERE course_id = $1) AS agg WHERE id = $1",
			r.CourseID)
		return errors.Wrap(err, "refreshing course aggregate")
	})
	if err != nil {
		return rating.Rating{}, false, err
	}
	return r, created, nil
}

func (repo *ratingRepository) QueryCourseRatings(ctx context.Context, courseID string) ([]rating.Rating, error) {
	query, args, err := psql.Select(ratingColumns...).
		From("course_ratings").
		Where(sq.Eq{"course_id": courseID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []ratingRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying ratings")
	}
	ratings := make([]rating.Rating, 0, len(rows))
	for _, row := range rows {
		ratings = append(ratings, rating.Rating(row))
	}
	return ratings, nil
}
