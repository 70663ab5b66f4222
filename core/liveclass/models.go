package liveclass

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/elimu-cd/elimu/core"
)

// LiveClass statuses
const (
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusEnded     = "ended"
	StatusCancelled = "cancelled"
)

// Participant statuses
const (
	ParticipantRegistered = "registered"
	ParticipantApproved   = "approved"
	ParticipantAttended   = "attended"
	ParticipantNoShow     = "no_show"
	ParticipantCancelled  = "cancelled"
)

// ActiveParticipantStatuses are the statuses counted towards occupancy.
var ActiveParticipantStatuses = []string{ParticipantRegistered, ParticipantApproved, ParticipantAttended}

// Message types
const (
	MessageText     = "text"
	MessageQuestion = "question"
	MessageAnswer   = "answer"
	MessageSystem   = "system"
)

type LiveClass struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CourseID    string `json:"course_id"`
	TeacherID   string `json:"teacher_id"`

	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`

	MeetingURL      string `json:"meeting_url,omitempty"`
	MeetingID       string `json:"meeting_id,omitempty"`
	MeetingPassword string `json:"-"`

	MaxParticipants     int  `json:"max_participants"`
	CurrentParticipants int  `json:"current_participants"`
	IsPublic            bool `json:"is_public"`
	RequiresApproval    bool `json:"requires_approval"`

	WillBeRecorded bool   `json:"will_be_recorded"`
	RecordingURL   string `json:"recording_url,omitempty"`

	TotalViews int       `json:"total_views"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

func (lc LiveClass) IsScheduled() bool { return lc.Status == StatusScheduled }
func (lc LiveClass) IsLive() bool      { return lc.Status == StatusLive }
func (lc LiveClass) IsEnded() bool     { return lc.Status == StatusEnded }

func (lc LiveClass) IsFull() bool {
	return lc.CurrentParticipants >= lc.MaxParticipants
}

func (lc LiveClass) AvailableSlots() int {
	if slots := lc.MaxParticipants - lc.CurrentParticipants; slots > 0 {
		return slots
	}
	return 0
}

// MarshalJSON includes the derived properties, recomputed on every read.
func (lc LiveClass) MarshalJSON() ([]byte, error) {
	type alias LiveClass
	return json.Marshal(struct {
		alias
		IsFull         bool `json:"is_full"`
		AvailableSlots int  `json:"available_slots"`
	}{alias(lc), lc.IsFull(), lc.AvailableSlots()})
}

type Participant struct {
	ID          string `json:"id"`
	StudentID   string `json:"student_id"`
	LiveClassID string `json:"live_class_id"`
	Status      string `json:"status"`

	JoinedAt           time.Time `json:"joined_at,omitempty"`
	LeftAt             time.Time `json:"left_at,omitempty"`
	AttendanceDuration int       `json:"attendance_duration"` // minutes

	RegisteredAt time.Time `json:"registered_at"`
	ApprovedAt   time.Time `json:"approved_at,omitempty"`
	ApprovedBy   string    `json:"approved_by,omitempty"`
}

type Message struct {
	ID          string    `json:"id"`
	LiveClassID string    `json:"live_class_id"`
	SenderID    string    `json:"sender_id"`
	Message     string    `json:"message"`
	Type        string    `json:"message_type"`
	IsPrivate   bool      `json:"is_private"`
	IsAnswered  bool      `json:"is_answered"`
	ParentID    string    `json:"parent_message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Recording struct {
	ID          string `json:"id"`
	LiveClassID string `json:"live_class_id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	RecordingURL    string `json:"recording_url"`
	RecordingFile   string `json:"recording_file,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	FileSize        int64  `json:"file_size"`

	IsPublic       bool `json:"is_public"`
	IsDownloadable bool `json:"is_downloadable"`

	ViewCount     int       `json:"view_count"`
	DownloadCount int       `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewLiveClass contains information needed to schedule a new LiveClass.
type NewLiveClass struct {
	Title           string    `json:"title" validate:"required,max=200"`
	Description     string    `json:"description" validate:"required"`
	CourseID        string    `json:"course_id" validate:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gte=15"`

	MeetingURL      string `json:"meeting_url" validate:"omitempty,url"`
	MeetingID       string `json:"meeting_id" validate:"omitempty,max=100"`
	MeetingPassword string `json:"meeting_password" validate:"omitempty,max=50"`

	MaxParticipants  int  `json:"max_participants" validate:"omitempty,gte=1"`
	IsPublic         bool `json:"is_public"`
	RequiresApproval bool `json:"requires_approval"`
	WillBeRecorded   bool `json:"will_be_recorded"`
}

func (nlc *NewLiveClass) Validate(validate *validator.Validate) error {
	nlc.Title = core.CleanString(nlc.Title)
	if nlc.MaxParticipants == 0 {
		nlc.MaxParticipants = 50
	}
	return validate.Struct(nlc)
}

// UpdateLiveClass defines what information may be provided to modify a LiveClass.
// Status is not settable here; it only moves through start/end/cancel.
type UpdateLiveClass struct {
	Title           string     `json:"title" validate:"omitempty,max=200"`
	Description     string     `json:"description"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gte=15"`

	MeetingURL      string `json:"meeting_url" validate:"omitempty,url"`
	MeetingID       string `json:"meeting_id" validate:"omitempty,max=100"`
	MeetingPassword string `json:"meeting_password" validate:"omitempty,max=50"`

	MaxParticipants  *int  `json:"max_participants" validate:"omitempty,gte=1"`
	IsPublic         *bool `json:"is_public"`
	RequiresApproval *bool `json:"requires_approval"`
	WillBeRecorded   *bool `json:"will_be_recorded"`
}

func (ulc *UpdateLiveClass) Validate(validate *validator.Validate) error {
	ulc.Title = core.CleanString(ulc.Title)
	return validate.Struct(ulc)
}

// NewMessage contains a chat message post.
type NewMessage struct {
	Message   string `json:"message" validate:"required"`
	Type      string `json:"message_type" validate:"omitempty,oneof=text question answer system"`
	IsPrivate bool   `json:"is_private"`
	ParentID  string `json:"parent_message"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Message = core.CleanString(nm.Message)
	if nm.Type == "" {
		nm.Type = MessageText
	}
	return validate.Struct(nm)
}

// NewRecording contains information needed to attach a recording to a class.
type NewRecording struct {
	LiveClassID     string `json:"live_class_id" validate:"required"`
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description"`
	RecordingURL    string `json:"recording_url" validate:"required,url"`
	RecordingFile   string `json:"recording_file"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
	FileSize        int64  `json:"file_size" validate:"gte=0"`
	IsPublic        bool   `json:"is_public"`
	IsDownloadable  bool   `json:"is_downloadable"`
}

func (nr *NewRecording) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	return validate.Struct(nr)
}

// UpdateRecording defines what information may be provided to modify a Recording.
type UpdateRecording struct {
	Title           string `json:"title" validate:"omitempty,max=200"`
	Description     string `json:"description"`
	RecordingURL    string `json:"recording_url" validate:"omitempty,url"`
	DurationMinutes *int   `json:"duration_minutes" validate:"omitempty,gte=0"`
	IsPublic        *bool  `json:"is_public"`
	IsDownloadable  *bool  `json:"is_downloadable"`
}

func (ur *UpdateRecording) Validate(validate *validator.Validate) error {
	ur.Title = core.CleanString(ur.Title)
	return validate.Struct(ur)
}

// QueryFilter narrows live class list results.
type QueryFilter struct {
	Search   string `query:"search"`
	CourseID string `query:"course"`
	Status   string `query:"status"`
	IsPublic *bool  `query:"is_public"`

	TeacherID         string    `query:"-"`
	EnrolledStudentID string    `query:"-"`
	ScheduledAfter    time.Time `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
