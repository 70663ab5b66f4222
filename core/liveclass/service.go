package liveclass

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/enrollment"
	"github.com/elimu-cd/elimu/core/user"
)

var (
	// errors
	ErrNotFound            = errors.New("live class not found")
	ErrParticipantNotFound = errors.New("participation not found")
	ErrRecordingNotFound   = errors.New("recording not found")
	ErrClassFull           = errors.New("live class is full")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrMustBeEnrolled      = errors.New("must be enrolled to join")
	errNotOwner            = errors.New("only the owning teacher may manage a live class")
)

type (
	Repository interface {
		CreateLiveClass(ctx context.Context, lc LiveClass) (LiveClass, error)
		GetLiveClassByID(ctx context.Context, id string) (LiveClass, error)
		QueryLiveClasses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []LiveClass, error)
		UpdateLiveClass(ctx context.Context, lc LiveClass) (LiveClass, error)
		DeleteLiveClass(ctx context.Context, id string) error
		// TransitionStatus atomically moves the class from `from` to `to`,
		// stamping the given timestamp field. It returns ErrInvalidStatus when
		// the current status is not `from`.
		TransitionStatus(ctx context.Context, id, from, to string, at time.Time) (LiveClass, error)

		// Join creates or reactivates the (student, class) participant row and
		// re-derives current_participants from the active rows in the same
		// transaction. The bool reports creation (vs reactivation).
		Join(ctx context.Context, studentID, classID string) (Participant, bool, error)
		// Leave cancels the participation and re-derives the occupancy.
		Leave(ctx context.Context, studentID, classID string) error
		GetParticipantByID(ctx context.Context, classID, participantID string) (Participant, error)
		QueryParticipants(ctx context.Context, classID string) ([]Participant, error)
		ApproveParticipant(ctx context.Context, p Participant) (Participant, error)

		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryMessages returns all messages when all=true; otherwise only
		// non-private messages plus the viewer's own.
		QueryMessages(ctx context.Context, classID string, all bool, viewerID string) ([]Message, error)

		CreateRecording(ctx context.Context, rec Recording) (Recording, error)
		GetRecordingByID(ctx context.Context, id string) (Recording, error)
		QueryRecordings(ctx context.Context, teacherID, enrolledStudentID string, pg core.Pagination) (int, []Recording, error)
		UpdateRecording(ctx context.Context, rec Recording) (Recording, error)
		DeleteRecording(ctx context.Context, id string) error
	}

	Service struct {
		repo   Repository
		enrSvc *enrollment.Service
	}
)

func NewService(repo Repository, enrSvc *enrollment.Service) *Service {
	return &Service{repo: repo, enrSvc: enrSvc}
}

// Create schedules a new live class owned by the acting teacher.
func (svc *Service) Create(ctx context.Context, actor user.User, nlc NewLiveClass) (LiveClass, error) {
	now := time.Now().UTC()
	lc := LiveClass{
		Title:            nlc.Title,
		Description:      nlc.Description,
		CourseID:         nlc.CourseID,
		TeacherID:        actor.ID,
		ScheduledAt:      nlc.ScheduledAt.UTC(),
		DurationMinutes:  nlc.DurationMinutes,
		Status:           StatusScheduled,
		MeetingURL:       nlc.MeetingURL,
		MeetingID:        nlc.MeetingID,
		MeetingPassword:  nlc.MeetingPassword,
		MaxParticipants:  nlc.MaxParticipants,
		IsPublic:         nlc.IsPublic,
		RequiresApproval: nlc.RequiresApproval,
		WillBeRecorded:   nlc.WillBeRecorded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return svc.repo.CreateLiveClass(ctx, lc)
}

func (svc *Service) Get(ctx context.Context, id string) (LiveClass, error) {
	return svc.repo.GetLiveClassByID(ctx, id)
}

// Query lists live classes with the actor's visibility applied: teachers see
// their own classes, students see classes of courses they are enrolled in.
func (svc *Service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []LiveClass, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	if actor.IsTeacher() {
		filter.TeacherID = actor.ID
	} else {
		filter.EnrolledStudentID = actor.ID
	}
	return svc.repo.QueryLiveClasses(ctx, filter, ordering, pg)
}

// QueryUpcoming lists scheduled classes starting from now, with the same
// visibility as Query.
func (svc *Service) QueryUpcoming(ctx context.Context, actor user.User, pg core.Pagination) (int, []LiveClass, error) {
	filter := &QueryFilter{
		Status:         StatusScheduled,
		ScheduledAfter: time.Now().UTC(),
	}
	if actor.IsTeacher() {
		filter.TeacherID = actor.ID
	} else {
		filter.EnrolledStudentID = actor.ID
	}
	ordering := []core.DBOrdering{{Field: "scheduled_at", Ascending: true}}
	return svc.repo.QueryLiveClasses(ctx, filter, ordering, pg)
}

// QueryTeacherClasses lists all classes owned by the acting teacher.
func (svc *Service) QueryTeacherClasses(ctx context.Context, actor user.User, ordering []core.DBOrdering, pg core.Pagination) (int, []LiveClass, error) {
	return svc.repo.QueryLiveClasses(ctx, &QueryFilter{TeacherID: actor.ID}, ordering, pg)
}

// Update applies an update to a class owned by the actor.
func (svc *Service) Update(ctx context.Context, actor user.User, id string, ulc UpdateLiveClass) (LiveClass, error) {
	lc, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		return LiveClass{}, err
	}

	if ulc.Title != "" {
		lc.Title = ulc.Title
	}
	if ulc.Description != "" {
		lc.Description = ulc.Description
	}
	if ulc.ScheduledAt != nil {
		lc.ScheduledAt = ulc.ScheduledAt.UTC()
	}
	if ulc.DurationMinutes != nil {
		lc.DurationMinutes = *ulc.DurationMinutes
	}
	if ulc.MeetingURL != "" {
		lc.MeetingURL = ulc.MeetingURL
	}
	if ulc.MeetingID != "" {
		lc.MeetingID = ulc.MeetingID
	}
	if ulc.MeetingPassword != "" {
		lc.MeetingPassword = ulc.MeetingPassword
	}
	if ulc.MaxParticipants != nil {
		lc.MaxParticipants = *ulc.MaxParticipants
	}
	if ulc.IsPublic != nil {
		lc.IsPublic = *ulc.IsPublic
	}
	if ulc.RequiresApproval != nil {
		lc.RequiresApproval = *ulc.RequiresApproval
	}
	if ulc.WillBeRecorded != nil {
		lc.WillBeRecorded = *ulc.WillBeRecorded
	}
	lc.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateLiveClass(ctx, lc)
}

// Delete removes a class owned by the actor.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.getOwned(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteLiveClass(ctx, id)
}

// Start moves a scheduled class live and stamps started_at. Only the owning
// teacher can start a class; anyone else gets a not-found, not a forbidden.
// A class that is already live or ended cannot be started (again).
func (svc *Service) Start(ctx context.Context, actor user.User, id string) (LiveClass, error) {
	if _, err := svc.getOwnedOr404(ctx, actor, id); err != nil {
		return LiveClass{}, err
	}
	lc, err := svc.repo.TransitionStatus(ctx, id, StatusScheduled, StatusLive, time.Now().UTC())
	if errors.Cause(err) == ErrInvalidStatus {
		return LiveClass{}, core.NewValidationError(errors.New("Live class is not scheduled"))
	}
	return lc, err
}

// End moves a live class to ended and stamps ended_at.
func (svc *Service) End(ctx context.Context, actor user.User, id string) (LiveClass, error) {
	if _, err := svc.getOwnedOr404(ctx, actor, id); err != nil {
		return LiveClass{}, err
	}
	lc, err := svc.repo.TransitionStatus(ctx, id, StatusLive, StatusEnded, time.Now().UTC())
	if errors.Cause(err) == ErrInvalidStatus {
		return LiveClass{}, core.NewValidationError(errors.New("Live class is not live"))
	}
	return lc, err
}

// Cancel cancels a class that has not started yet.
func (svc *Service) Cancel(ctx context.Context, actor user.User, id string) (LiveClass, error) {
	if _, err := svc.getOwnedOr404(ctx, actor, id); err != nil {
		return LiveClass{}, err
	}
	lc, err := svc.repo.TransitionStatus(ctx, id, StatusScheduled, StatusCancelled, time.Now().UTC())
	if errors.Cause(err) == ErrInvalidStatus {
		return LiveClass{}, core.NewValidationError(errors.New("Live class is not scheduled"))
	}
	return lc, err
}

// Join registers the student for the class. Enrollment in the parent course is
// required; capacity is enforced. A previously cancelled participation is
// reactivated rather than duplicated. The bool reports creation.
func (svc *Service) Join(ctx context.Context, actor user.User, id string) (Participant, bool, error) {
	lc, err := svc.repo.GetLiveClassByID(ctx, id)
	if err != nil {
		return Participant{}, false, err
	}

	enrolled, err := svc.enrSvc.IsActivelyEnrolled(ctx, actor.ID, lc.CourseID)
	if err != nil {
		return Participant{}, false, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Participant{}, false, core.NewPermissionError(ErrMustBeEnrolled)
	}

	p, created, err := svc.repo.Join(ctx, actor.ID, id)
	if errors.Cause(err) == ErrClassFull {
		return Participant{}, false, core.NewValidationError(errors.New("Live class is full"))
	}
	return p, created, err
}

// Leave cancels the student's participation.
func (svc *Service) Leave(ctx context.Context, actor user.User, id string) error {
	return svc.repo.Leave(ctx, actor.ID, id)
}

// QueryParticipants lists the participant roster of a class.
func (svc *Service) QueryParticipants(ctx context.Context, id string) ([]Participant, error) {
	if _, err := svc.repo.GetLiveClassByID(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.QueryParticipants(ctx, id)
}

// Approve marks a participant approved, stamping approver and time.
// No precondition is placed on the participant's current status or the class's
// requires_approval flag; approval is always allowed.
func (svc *Service) Approve(ctx context.Context, actor user.User, classID, participantID string) (Participant, error) {
	if _, err := svc.getOwnedOr404(ctx, actor, classID); err != nil {
		return Participant{}, err
	}

	p, err := svc.repo.GetParticipantByID(ctx, classID, participantID)
	if err != nil {
		return Participant{}, err
	}
	p.Status = ParticipantApproved
	p.ApprovedBy = actor.ID
	p.ApprovedAt = time.Now().UTC()
	return svc.repo.ApproveParticipant(ctx, p)
}

// PostMessage adds a chat message to the class thread.
func (svc *Service) PostMessage(ctx context.Context, actor user.User, classID string, nm NewMessage) (Message, error) {
	if _, err := svc.repo.GetLiveClassByID(ctx, classID); err != nil {
		return Message{}, err
	}
	now := time.Now().UTC()
	msg := Message{
		LiveClassID: classID,
		SenderID:    actor.ID,
		Message:     nm.Message,
		Type:        nm.Type,
		IsPrivate:   nm.IsPrivate,
		ParentID:    nm.ParentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateMessage(ctx, msg)
}

// QueryMessages lists the chat thread with per-caller visibility: the owning
// teacher sees everything, everyone else sees non-private messages plus their own.
func (svc *Service) QueryMessages(ctx context.Context, actor user.User, classID string) ([]Message, error) {
	lc, err := svc.repo.GetLiveClassByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	all := lc.TeacherID == actor.ID
	return svc.repo.QueryMessages(ctx, classID, all, actor.ID)
}

// Recordings

// CreateRecording attaches a recording to a class owned by the actor.
func (svc *Service) CreateRecording(ctx context.Context, actor user.User, nr NewRecording) (Recording, error) {
	if _, err := svc.getOwned(ctx, actor, nr.LiveClassID); err != nil {
		return Recording{}, err
	}
	now := time.Now().UTC()
	rec := Recording{
		LiveClassID:     nr.LiveClassID,
		Title:           nr.Title,
		Description:     nr.Description,
		RecordingURL:    nr.RecordingURL,
		RecordingFile:   nr.RecordingFile,
		DurationMinutes: nr.DurationMinutes,
		FileSize:        nr.FileSize,
		IsPublic:        nr.IsPublic,
		IsDownloadable:  nr.IsDownloadable,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.CreateRecording(ctx, rec)
}

func (svc *Service) GetRecording(ctx context.Context, id string) (Recording, error) {
	return svc.repo.GetRecordingByID(ctx, id)
}

// QueryRecordings lists recordings with the actor's visibility applied:
// teachers see recordings of their own classes, students those of enrolled courses.
func (svc *Service) QueryRecordings(ctx context.Context, actor user.User, pg core.Pagination) (int, []Recording, error) {
	if actor.IsTeacher() {
		return svc.repo.QueryRecordings(ctx, actor.ID, "", pg)
	}
	return svc.repo.QueryRecordings(ctx, "", actor.ID, pg)
}

// UpdateRecording applies an update to a recording of a class owned by the actor.
func (svc *Service) UpdateRecording(ctx context.Context, actor user.User, id string, ur UpdateRecording) (Recording, error) {
	rec, err := svc.repo.GetRecordingByID(ctx, id)
	if err != nil {
		return Recording{}, err
	}
	if _, err := svc.getOwned(ctx, actor, rec.LiveClassID); err != nil {
		return Recording{}, err
	}

	if ur.Title != "" {
		rec.Title = ur.Title
	}
	if ur.Description != "" {
		rec.Description = ur.Description
	}
	if ur.RecordingURL != "" {
		rec.RecordingURL = ur.RecordingURL
	}
	if ur.DurationMinutes != nil {
		rec.DurationMinutes = *ur.DurationMinutes
	}
	if ur.IsPublic != nil {
		rec.IsPublic = *ur.IsPublic
	}
	if ur.IsDownloadable != nil {
		rec.IsDownloadable = *ur.IsDownloadable
	}
	rec.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRecording(ctx, rec)
}

// DeleteRecording removes a recording of a class owned by the actor.
func (svc *Service) DeleteRecording(ctx context.Context, actor user.User, id string) error {
	rec, err := svc.repo.GetRecordingByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := svc.getOwned(ctx, actor, rec.LiveClassID); err != nil {
		return err
	}
	return svc.repo.DeleteRecording(ctx, id)
}

// getOwned fetches a class and verifies the actor owns it.
func (svc *Service) getOwned(ctx context.Context, actor user.User, id string) (LiveClass, error) {
	lc, err := svc.repo.GetLiveClassByID(ctx, id)
	if err != nil {
		return LiveClass{}, err
	}
	if lc.TeacherID != actor.ID {
		return LiveClass{}, core.NewPermissionError(errNotOwner)
	}
	return lc, nil
}

// getOwnedOr404 is getOwned, except a non-owner is indistinguishable from a
// missing class.
func (svc *Service) getOwnedOr404(ctx context.Context, actor user.User, id string) (LiveClass, error) {
	lc, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		if _, ok := errors.Cause(err).(*core.PermissionError); ok {
			return LiveClass{}, ErrNotFound
		}
		return LiveClass{}, err
	}
	return lc, nil
}
