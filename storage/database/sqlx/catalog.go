package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/catalog"
)

type courseRow struct {
	ID               string      `db:"id"`
	Title            string      `db:"title"`
	Description      string      `db:"description"`
	ShortDescription string      `db:"short_description"`
	CategoryID       null.String `db:"category_id"`
	TeacherID        string      `db:"teacher_id"`
	Difficulty       string      `db:"difficulty"`
	Status           string      `db:"status"`
	DurationHours    int         `db:"duration_hours"`
	Price            float64     `db:"price"`
	MaxStudents      int         `db:"max_students"`
	CurrentStudents  int         `db:"current_students"`
	AverageRating    float64     `db:"average_rating"`
	TotalRatings     int         `db:"total_ratings"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
	PublishedAt      null.Time   `db:"published_at"`
}

func (r courseRow) toCourse() catalog.Course {
	return catalog.Course{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		CategoryID:       r.CategoryID.String,
		TeacherID:        r.TeacherID,
		Difficulty:       r.Difficulty,
		Status:           r.Status,
		DurationHours:    r.DurationHours,
		Price:            r.Price,
		MaxStudents:      r.MaxStudents,
		CurrentStudents:  r.CurrentStudents,
		AverageRating:    r.AverageRating,
		TotalRatings:     r.TotalRatings,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		PublishedAt:      r.PublishedAt.Time,
	}
}

var courseColumns = []string{
	"id", "title", "description", "short_description", "category_id", "teacher_id",
	"difficulty", "status", "duration_hours", "price", "max_students", "current_students",
	"average_rating", "total_ratings", "created_at", "updated_at", "published_at",
}

type catalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *sqlx.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

// Categories

func (repo *catalogRepository) CreateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	cat.ID = uuid.New().String()
	query, args, err := psql.Insert("categories").
		Columns("id", "name", "description", "created_at", "updated_at").
		Values(cat.ID, cat.Name, cat.Description, cat.CreatedAt, cat.UpdatedAt).
		ToSql()
	if err != nil {
		return catalog.Category{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return catalog.Category{}, catalog.ErrCategoryExists
		}
		return catalog.Category{}, errors.Wrap(err, "inserting category")
	}
	return cat, nil
}

func (repo *catalogRepository) GetCategoryByID(ctx context.Context, id string) (catalog.Category, error) {
	query, args, err := psql.Select("id", "name", "description", "created_at", "updated_at").
		From("categories").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return catalog.Category{}, errors.Wrap(err, "building query")
	}
	var row struct {
		ID          string    `db:"id"`
		Name        string    `db:"name"`
		Description string    `db:"description"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return catalog.Category{}, trapNoRowsErr(err, catalog.ErrCategoryNotFound)
	}
	return catalog.Category(row), nil
}

func (repo *catalogRepository) QueryCategories(ctx context.Context, filter *catalog.CategoryFilter, ordering []core.DBOrdering) ([]catalog.Category, error) {
	qb := psql.Select("id", "name", "description", "created_at", "updated_at").From("categories")
	if filter != nil && filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		qb = qb.Where(sq.Or{sq.ILike{"name": pattern}, sq.ILike{"description": pattern}})
	}
	qb = applyOrdering(qb, ordering, "name ASC")

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []struct {
		ID          string    `db:"id"`
		Name        string    `db:"name"`
		Description string    `db:"description"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	cats := make([]catalog.Category, 0, len(rows))
	for _, row := range rows {
		cats = append(cats, catalog.Category(row))
	}
	return cats, nil
}

func (repo *catalogRepository) UpdateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	query, args, err := psql.Update("categories").
		Set("name", cat.Name).
		Set("description", cat.Description).
		Set("updated_at", cat.UpdatedAt).
		Where(sq.Eq{"id": cat.ID}).
		ToSql()
	if err != nil {
		return catalog.Category{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.Category{}, catalog.ErrCategoryExists
		}
		return catalog.Category{}, errors.Wrap(err, "updating category")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.Category{}, catalog.ErrCategoryNotFound
	}
	return repo.GetCategoryByID(ctx, cat.ID)
}

func (repo *catalogRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting category")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

// Courses

func (repo *catalogRepository) CreateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error) {
	course.ID = uuid.New().String()
	query, args, err := psql.Insert("courses").
		Columns(courseColumns[:len(courseColumns)-1]...). // published_at starts NULL
		Values(
			course.ID, course.Title, course.Description, course.ShortDescription,
			null.NewString(course.CategoryID, course.CategoryID != ""), course.TeacherID,
			course.Difficulty, course.Status, course.DurationHours, course.Price,
			course.MaxStudents, course.CurrentStudents, course.AverageRating,
			course.TotalRatings, course.CreatedAt, course.UpdatedAt,
		).ToSql()
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return catalog.Course{}, errors.Wrap(err, "inserting course")
	}
	return course, nil
}

func (repo *catalogRepository) GetCourseByID(ctx context.Context, id string) (catalog.Course, error) {
	query, args, err := psql.Select(courseColumns...).From("courses").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "building query")
	}
	var row courseRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return catalog.Course{}, trapNoRowsErr(err, catalog.ErrNotFound)
	}
	return row.toCourse(), nil
}

func (repo *catalogRepository) QueryCourses(ctx context.Context, filter *catalog.QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []catalog.Course, error) {
	base := psql.Select().From("courses")
	if filter != nil {
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			base = base.Where(sq.Or{
				sq.ILike{"title": pattern},
				sq.ILike{"description": pattern},
				sq.ILike{"short_description": pattern},
			})
		}
		if filter.CategoryID != "" {
			base = base.Where(sq.Eq{"category_id": filter.CategoryID})
		}
		if filter.Difficulty != "" {
			base = base.Where(sq.Eq{"difficulty": filter.Difficulty})
		}
		if filter.Status != "" {
			base = base.Where(sq.Eq{"status": filter.Status})
		}
		if filter.TeacherID != "" {
			base = base.Where(sq.Eq{"teacher_id": filter.TeacherID})
		}
	}

	total, err := count(ctx, repo.db, base.Columns("COUNT(*)"))
	if err != nil {
		return 0, nil, err
	}

	qb := applyPagination(applyOrdering(base.Columns(courseColumns...), ordering, "created_at DESC"), pg)
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, nil, errors.Wrap(err, "building query")
	}
	var rows []courseRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return 0, nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]catalog.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return total, courses, nil
}

func (repo *catalogRepository) UpdateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error) {
	query, args, err := psql.Update("courses").
		Set("title", course.Title).
		Set("description", course.Description).
		Set("short_description", course.ShortDescription).
		Set("category_id", null.NewString(course.CategoryID, course.CategoryID != "")).
		Set("difficulty", course.Difficulty).
		Set("status", course.Status).
		Set("duration_hours", course.DurationHours).
		Set("price", course.Price).
		Set("max_students", course.MaxStudents).
		Set("updated_at", course.UpdatedAt).
		Set("published_at", null.NewTime(course.PublishedAt, !course.PublishedAt.IsZero())).
		Where(sq.Eq{"id": course.ID}).
		ToSql()
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.Course{}, catalog.ErrNotFound
	}
	return repo.GetCourseByID(ctx, course.ID)
}

func (repo *catalogRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
