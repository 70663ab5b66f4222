package catalog

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("course not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("a category with this name already exists")
)

type (
	Repository interface {
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		GetCategoryByID(ctx context.Context, id string) (Category, error)
		QueryCategories(ctx context.Context, filter *CategoryFilter, ordering []core.DBOrdering) ([]Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)
		// DeleteCategory removes the category and cascades to its courses.
		DeleteCategory(ctx context.Context, id string) error

		CreateCourse(ctx context.Context, course Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		// QueryCourses returns the total match count alongside the requested page.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []Course, error)
		UpdateCourse(ctx context.Context, course Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Categories

func (svc *Service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	now := time.Now().UTC()
	cat, err := svc.repo.CreateCategory(ctx, Category{
		Name:        nc.Name,
		Description: nc.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Cause(err) == ErrCategoryExists {
		return Category{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return cat, errors.Wrap(err, "creating category")
}

func (svc *Service) GetCategory(ctx context.Context, id string) (Category, error) {
	return svc.repo.GetCategoryByID(ctx, id)
}

func (svc *Service) QueryCategories(ctx context.Context, filter *CategoryFilter, ordering []core.DBOrdering) ([]Category, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryCategories(ctx, filter, ordering)
}

func (svc *Service) UpdateCategory(ctx context.Context, id string, uc UpdateCategory) (Category, error) {
	cat, err := svc.repo.UpdateCategory(ctx, Category{
		ID:          id,
		Name:        uc.Name,
		Description: uc.Description,
		UpdatedAt:   time.Now().UTC(),
	})
	if errors.Cause(err) == ErrCategoryExists {
		return Category{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return cat, err
}

func (svc *Service) DeleteCategory(ctx context.Context, id string) error {
	return svc.repo.DeleteCategory(ctx, id)
}

// Courses

// CreateCourse creates a draft course owned by the acting teacher.
func (svc *Service) CreateCourse(ctx context.Context, actor user.User, nc NewCourse) (Course, error) {
	if _, err := svc.repo.GetCategoryByID(ctx, nc.CategoryID); err != nil {
		if errors.Cause(err) == ErrCategoryNotFound {
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "category_id", Error: err.Error()})
		}
		return Course{}, errors.Wrap(err, "finding category")
	}

	now := time.Now().UTC()
	course := Course{
		Title:            nc.Title,
		Description:      nc.Description,
		ShortDescription: nc.ShortDescription,
		CategoryID:       nc.CategoryID,
		TeacherID:        actor.ID,
		Difficulty:       nc.Difficulty,
		Status:           StatusDraft,
		DurationHours:    nc.DurationHours,
		Price:            nc.Price,
		MaxStudents:      nc.MaxStudents,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return svc.repo.CreateCourse(ctx, course)
}

// GetCourse returns a course visible to the actor: teachers see their own
// courses in any status, everyone else sees only published ones.
func (svc *Service) GetCourse(ctx context.Context, actor user.User, id string) (Course, error) {
	course, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if course.TeacherID != actor.ID && !course.IsPublished() {
		return Course{}, ErrNotFound
	}
	return course, nil
}

// QueryCourses lists courses with the actor's visibility applied.
func (svc *Service) QueryCourses(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []Course, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	if actor.IsTeacher() {
		filter.TeacherID = actor.ID
	} else {
		filter.Status = StatusPublished
	}
	return svc.repo.QueryCourses(ctx, filter, ordering, pg)
}

// QueryTeacherCourses lists all courses owned by the acting teacher.
func (svc *Service) QueryTeacherCourses(ctx context.Context, actor user.User, ordering []core.DBOrdering, pg core.Pagination) (int, []Course, error) {
	return svc.repo.QueryCourses(ctx, &QueryFilter{TeacherID: actor.ID}, ordering, pg)
}

// UpdateCourse applies an update to a course owned by the actor.
// Publishing stamps published_at.
func (svc *Service) UpdateCourse(ctx context.Context, actor user.User, id string, uc UpdateCourse) (Course, error) {
	orig, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if orig.TeacherID != actor.ID {
		return Course{}, core.NewPermissionError(errors.New("only the owning teacher may modify a course"))
	}
	if err := uc.Validate(orig, core.Validate); err != nil {
		return Course{}, err
	}

	course := orig
	course.Title = uc.Title
	course.Description = uc.Description
	course.ShortDescription = uc.ShortDescription
	course.CategoryID = uc.CategoryID
	course.Difficulty = uc.Difficulty
	course.Status = uc.Status
	if uc.DurationHours != nil {
		course.DurationHours = *uc.DurationHours
	}
	if uc.Price != nil {
		course.Price = *uc.Price
	}
	if uc.MaxStudents != nil {
		course.MaxStudents = *uc.MaxStudents
	}
	course.UpdatedAt = time.Now().UTC()
	if course.IsPublished() && orig.PublishedAt.IsZero() {
		course.PublishedAt = course.UpdatedAt
	}
	return svc.repo.UpdateCourse(ctx, course)
}

// DeleteCourse removes a course owned by the actor.
func (svc *Service) DeleteCourse(ctx context.Context, actor user.User, id string) error {
	course, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return err
	}
	if course.TeacherID != actor.ID {
		return core.NewPermissionError(errors.New("only the owning teacher may delete a course"))
	}
	return svc.repo.DeleteCourse(ctx, id)
}
