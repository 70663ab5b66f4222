package catalog

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/elimu-cd/elimu/core"
)

// Difficulties
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// Statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// statusTransitions is the closed set of legal status changes. Any write moving
// a course outside this graph is rejected with a ValidationError.
var statusTransitions = map[string][]string{
	StatusDraft:     {StatusPublished, StatusArchived},
	StatusPublished: {StatusArchived},
	StatusArchived:  {},
}

// CanTransition reports whether a course status may change from `from` to `to`.
// Writing the current status back is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Course struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ShortDescription string    `json:"short_description"`
	CategoryID       string    `json:"category_id"`
	TeacherID        string    `json:"teacher_id"`
	Difficulty       string    `json:"difficulty"`
	Status           string    `json:"status"`
	DurationHours    int       `json:"duration_hours"`
	Price            float64   `json:"price"`
	MaxStudents      int       `json:"max_students"`
	CurrentStudents  int       `json:"current_students"`
	AverageRating    float64   `json:"average_rating"`
	TotalRatings     int       `json:"total_ratings"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	PublishedAt      time.Time `json:"published_at"`
}

func (c Course) IsPublished() bool {
	return c.Status == StatusPublished
}

func (c Course) IsFull() bool {
	return c.CurrentStudents >= c.MaxStudents
}

func (c Course) AvailableSlots() int {
	if slots := c.MaxStudents - c.CurrentStudents; slots > 0 {
		return slots
	}
	return 0
}

// MarshalJSON includes the derived properties, recomputed on every read.
func (c Course) MarshalJSON() ([]byte, error) {
	type alias Course
	return json.Marshal(struct {
		alias
		IsPublished    bool `json:"is_published"`
		IsFull         bool `json:"is_full"`
		AvailableSlots int  `json:"available_slots"`
	}{alias(c), c.IsPublished(), c.IsFull(), c.AvailableSlots()})
}

// NewCategory contains information needed to create a new Category.
type NewCategory struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateCategory defines what information may be provided to modify a Category.
type UpdateCategory struct {
	Name        string `json:"name" validate:"omitempty,max=100"`
	Description string `json:"description"`
}

func (uc *UpdateCategory) Validate(orig Category, validate *validator.Validate) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if uc.Description == "" {
		uc.Description = orig.Description
	}
	return validate.Struct(uc)
}

// NewCourse contains information needed to create a new Course.
// New courses always start in draft with zero occupancy.
type NewCourse struct {
	Title            string  `json:"title" validate:"required,max=200"`
	Description      string  `json:"description" validate:"required"`
	ShortDescription string  `json:"short_description" validate:"required,max=300"`
	CategoryID       string  `json:"category_id" validate:"required"`
	Difficulty       string  `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	DurationHours    int     `json:"duration_hours" validate:"gte=0"`
	Price            float64 `json:"price" validate:"gte=0"`
	MaxStudents      int     `json:"max_students" validate:"omitempty,gte=1"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.ShortDescription = core.CleanString(nc.ShortDescription)
	if nc.Difficulty == "" {
		nc.Difficulty = DifficultyBeginner
	}
	if nc.MaxStudents == 0 {
		nc.MaxStudents = 50
	}
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify a Course.
// Status changes are validated against the transition graph by the service.
type UpdateCourse struct {
	Title            string   `json:"title" validate:"omitempty,max=200"`
	Description      string   `json:"description"`
	ShortDescription string   `json:"short_description" validate:"omitempty,max=300"`
	CategoryID       string   `json:"category_id"`
	Difficulty       string   `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Status           string   `json:"status" validate:"omitempty,oneof=draft published archived"`
	DurationHours    *int     `json:"duration_hours" validate:"omitempty,gte=0"`
	Price            *float64 `json:"price" validate:"omitempty,gte=0"`
	MaxStudents      *int     `json:"max_students" validate:"omitempty,gte=1"`
}

func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate) error {
	if title := core.CleanString(uc.Title); title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}
	if uc.Description == "" {
		uc.Description = orig.Description
	}
	if sd := core.CleanString(uc.ShortDescription); sd != "" {
		uc.ShortDescription = sd
	} else {
		uc.ShortDescription = orig.ShortDescription
	}
	if uc.CategoryID == "" {
		uc.CategoryID = orig.CategoryID
	}
	if uc.Difficulty == "" {
		uc.Difficulty = orig.Difficulty
	}
	if uc.Status == "" {
		uc.Status = orig.Status
	}
	if err := validate.Struct(uc); err != nil {
		return err
	}
	if !CanTransition(orig.Status, uc.Status) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "status",
			Error: "cannot transition from " + orig.Status + " to " + uc.Status,
		})
	}
	return nil
}

// QueryFilter narrows course list results. Fields combine with AND;
// Search does a case-insensitive match on title, description or short description.
type QueryFilter struct {
	Search     string `query:"search"`
	CategoryID string `query:"category"`
	Difficulty string `query:"difficulty"`
	Status     string `query:"status"`
	TeacherID  string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// CategoryFilter narrows category list results.
type CategoryFilter struct {
	Search string `query:"search"`
}

func (qf *CategoryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
