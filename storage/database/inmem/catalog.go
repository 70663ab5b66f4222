package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

// Categories

func (repo *catalogRepository) CreateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, c := range repo.db.categories {
		if c.Name == cat.Name {
			return catalog.Category{}, catalog.ErrCategoryExists
		}
	}
	cat.ID = uuid.New().String()
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *catalogRepository) GetCategoryByID(ctx context.Context, id string) (catalog.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cat, ok := repo.db.categories[id]; ok {
		return *cat, nil
	}
	return catalog.Category{}, catalog.ErrCategoryNotFound
}

func (repo *catalogRepository) QueryCategories(ctx context.Context, filter *catalog.CategoryFilter, ordering []core.DBOrdering) ([]catalog.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cats := make([]catalog.Category, 0, len(repo.db.categories))
	for _, cat := range repo.db.categories {
		if filter != nil && !matches(filter.Search, cat.Name, cat.Description) {
			continue
		}
		cats = append(cats, *cat)
	}
	sortBy(len(cats), ordering, core.DBOrdering{Field: "name", Ascending: true},
		func(field string, i, j int) bool {
			if field == "created_at" {
				return cats[i].CreatedAt.Before(cats[j].CreatedAt)
			}
			return cats[i].Name < cats[j].Name
		},
		func(i, j int) { cats[i], cats[j] = cats[j], cats[i] })
	return cats, nil
}

func (repo *catalogRepository) UpdateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.categories[cat.ID]
	if !ok {
		return catalog.Category{}, catalog.ErrCategoryNotFound
	}
	for _, c := range repo.db.categories {
		if c.ID != cat.ID && c.Name == cat.Name {
			return catalog.Category{}, catalog.ErrCategoryExists
		}
	}
	orig.Name = cat.Name
	orig.Description = cat.Description
	orig.UpdatedAt = cat.UpdatedAt
	return *orig, nil
}

func (repo *catalogRepository) DeleteCategory(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[id]; !ok {
		return catalog.ErrCategoryNotFound
	}
	delete(repo.db.categories, id)
	for cid, course := range repo.db.courses {
		if course.CategoryID == id {
			delete(repo.db.courses, cid)
		}
	}
	return nil
}

// Courses

func (repo *catalogRepository) CreateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	course.ID = uuid.New().String()
	repo.db.courses[course.ID] = &course
	return course, nil
}

func (repo *catalogRepository) GetCourseByID(ctx context.Context, id string) (catalog.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if course, ok := repo.db.courses[id]; ok {
		return *course, nil
	}
	return catalog.Course{}, catalog.ErrNotFound
}

func (repo *catalogRepository) QueryCourses(ctx context.Context, filter *catalog.QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []catalog.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]catalog.Course, 0, len(repo.db.courses))
	for _, course := range repo.db.courses {
		if filter != nil {
			if !matches(filter.Search, course.Title, course.Description, course.ShortDescription) {
				continue
			}
			if filter.CategoryID != "" && course.CategoryID != filter.CategoryID {
				continue
			}
			if filter.Difficulty != "" && course.Difficulty != filter.Difficulty {
				continue
			}
			if filter.Status != "" && course.Status != filter.Status {
				continue
			}
			if filter.TeacherID != "" && course.TeacherID != filter.TeacherID {
				continue
			}
		}
		courses = append(courses, *course)
	}

	sortBy(len(courses), ordering, core.DBOrdering{Field: "created_at"},
		func(field string, i, j int) bool {
			switch field {
			case "title":
				return courses[i].Title < courses[j].Title
			case "price":
				return courses[i].Price < courses[j].Price
			case "average_rating":
				return courses[i].AverageRating < courses[j].AverageRating
			default:
				return courses[i].CreatedAt.Before(courses[j].CreatedAt)
			}
		},
		func(i, j int) { courses[i], courses[j] = courses[j], courses[i] })

	total := len(courses)
	lo, hi := paginate(total, pg)
	return total, courses[lo:hi], nil
}

func (repo *catalogRepository) UpdateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.courses[course.ID]
	if !ok {
		return catalog.Course{}, catalog.ErrNotFound
	}
	// counters and aggregates are never written through here
	course.CurrentStudents = orig.CurrentStudents
	course.AverageRating = orig.AverageRating
	course.TotalRatings = orig.TotalRatings
	repo.db.courses[course.ID] = &course
	return course, nil
}

func (repo *catalogRepository) DeleteCourse(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(repo.db.courses, id)
	return nil
}
