package rating

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Rating is one student's rating of one course. At most one row exists per
// (student, course) pair; repeated rating updates it in place.
type Rating struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	CourseID  string    `json:"course_id"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRating contains a rate-course request.
type NewRating struct {
	Rating int    `json:"rating" validate:"required,gte=1,lte=5"`
	Review string `json:"review"`
}

func (nr NewRating) Validate(validate *validator.Validate) error {
	return validate.Struct(nr)
}
