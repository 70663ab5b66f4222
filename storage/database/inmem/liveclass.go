package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/liveclass"
)

type liveClassRepository struct {
	db *DB
}

var _ liveclass.Repository = (*liveClassRepository)(nil)

func NewLiveClassRepository(db *DB) *liveClassRepository {
	return &liveClassRepository{db: db}
}

func (repo *liveClassRepository) CreateLiveClass(ctx context.Context, lc liveclass.LiveClass) (liveclass.LiveClass, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	lc.ID = uuid.New().String()
	repo.db.classes[lc.ID] = &lc
	return lc, nil
}

func (repo *liveClassRepository) GetLiveClassByID(ctx context.Context, id string) (liveclass.LiveClass, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if lc, ok := repo.db.classes[id]; ok {
		return *lc, nil
	}
	return liveclass.LiveClass{}, liveclass.ErrNotFound
}

func (repo *liveClassRepository) QueryLiveClasses(ctx context.Context, filter *liveclass.QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []liveclass.LiveClass, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]liveclass.LiveClass, 0, len(repo.db.classes))
	for _, lc := range repo.db.classes {
		if filter != nil {
			if !matches(filter.Search, lc.Title, lc.Description) {
				continue
			}
			if filter.CourseID != "" && lc.CourseID != filter.CourseID {
				continue
			}
			if filter.Status != "" && lc.Status != filter.Status {
				continue
			}
			if filter.IsPublic != nil && lc.IsPublic != *filter.IsPublic {
				continue
			}
			if filter.TeacherID != "" && lc.TeacherID != filter.TeacherID {
				continue
			}
			if filter.EnrolledStudentID != "" && !repo.db.isActivelyEnrolled(filter.EnrolledStudentID, lc.CourseID) {
				continue
			}
			if !filter.ScheduledAfter.IsZero() && lc.ScheduledAt.Before(filter.ScheduledAfter) {
				continue
			}
		}
		classes = append(classes, *lc)
	}

	sortBy(len(classes), ordering, core.DBOrdering{Field: "scheduled_at"},
		func(field string, i, j int) bool {
			switch field {
			case "title":
				return classes[i].Title < classes[j].Title
			case "created_at":
				return classes[i].CreatedAt.Before(classes[j].CreatedAt)
			default:
				return classes[i].ScheduledAt.Before(classes[j].ScheduledAt)
			}
		},
		func(i, j int) { classes[i], classes[j] = classes[j], classes[i] })

	total := len(classes)
	lo, hi := paginate(total, pg)
	return total, classes[lo:hi], nil
}

func (repo *liveClassRepository) UpdateLiveClass(ctx context.Context, lc liveclass.LiveClass) (liveclass.LiveClass, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.classes[lc.ID]
	if !ok {
		return liveclass.LiveClass{}, liveclass.ErrNotFound
	}
	// status and counters only move through their dedicated operations
	lc.Status = orig.Status
	lc.CurrentParticipants = orig.CurrentParticipants
	lc.StartedAt = orig.StartedAt
	lc.EndedAt = orig.EndedAt
	repo.db.classes[lc.ID] = &lc
	return lc, nil
}

func (repo *liveClassRepository) DeleteLiveClass(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return liveclass.ErrNotFound
	}
	delete(repo.db.classes, id)
	return nil
}

func (repo *liveClassRepository) TransitionStatus(ctx context.Context, id, from, to string, at time.Time) (liveclass.LiveClass, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	lc, ok := repo.db.classes[id]
	if !ok {
		return liveclass.LiveClass{}, liveclass.ErrNotFound
	}
	if lc.Status != from {
		return liveclass.LiveClass{}, liveclass.ErrInvalidStatus
	}
	lc.Status = to
	lc.UpdatedAt = at
	switch to {
	case liveclass.StatusLive:
		lc.StartedAt = at
	case liveclass.StatusEnded:
		lc.EndedAt = at
	}
	return *lc, nil
}

func (repo *liveClassRepository) Join(ctx context.Context, studentID, classID string) (liveclass.Participant, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	lc, ok := repo.db.classes[classID]
	if !ok {
		return liveclass.Participant{}, false, liveclass.ErrNotFound
	}
	if repo.countActive(classID) >= lc.MaxParticipants {
		return liveclass.Participant{}, false, liveclass.ErrClassFull
	}

	for _, p := range repo.db.participants {
		if p.StudentID == studentID && p.LiveClassID == classID {
			if p.Status == liveclass.ParticipantCancelled {
				p.Status = liveclass.ParticipantRegistered
			}
			lc.CurrentParticipants = repo.countActive(classID)
			return *p, false, nil
		}
	}

	p := &liveclass.Participant{
		ID:           uuid.New().String(),
		StudentID:    studentID,
		LiveClassID:  classID,
		Status:       liveclass.ParticipantRegistered,
		RegisteredAt: time.Now().UTC(),
	}
	repo.db.participants[p.ID] = p
	lc.CurrentParticipants = repo.countActive(classID)
	return *p, true, nil
}

func (repo *liveClassRepository) Leave(ctx context.Context, studentID, classID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	lc, ok := repo.db.classes[classID]
	if !ok {
		return liveclass.ErrNotFound
	}
	for _, p := range repo.db.participants {
		if p.StudentID == studentID && p.LiveClassID == classID && p.Status != liveclass.ParticipantCancelled {
			p.Status = liveclass.ParticipantCancelled
			p.LeftAt = time.Now().UTC()
			lc.CurrentParticipants = repo.countActive(classID)
			return nil
		}
	}
	return liveclass.ErrParticipantNotFound
}

func (repo *liveClassRepository) GetParticipantByID(ctx context.Context, classID, participantID string) (liveclass.Participant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.participants[participantID]; ok && p.LiveClassID == classID {
		return *p, nil
	}
	return liveclass.Participant{}, liveclass.ErrParticipantNotFound
}

func (repo *liveClassRepository) QueryParticipants(ctx context.Context, classID string) ([]liveclass.Participant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	parts := make([]liveclass.Participant, 0)
	for _, p := range repo.db.participants {
		if p.LiveClassID == classID {
			parts = append(parts, *p)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].RegisteredAt.Before(parts[j].RegisteredAt) })
	return parts, nil
}

func (repo *liveClassRepository) ApproveParticipant(ctx context.Context, p liveclass.Participant) (liveclass.Participant, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.participants[p.ID]
	if !ok {
		return liveclass.Participant{}, liveclass.ErrParticipantNotFound
	}
	orig.Status = p.Status
	orig.ApprovedAt = p.ApprovedAt
	orig.ApprovedBy = p.ApprovedBy
	return *orig, nil
}

func (repo *liveClassRepository) CreateMessage(ctx context.Context, msg liveclass.Message) (liveclass.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	msg.ID = uuid.New().String()
	repo.db.messages[msg.ID] = &msg
	return msg, nil
}

func (repo *liveClassRepository) QueryMessages(ctx context.Context, classID string, all bool, viewerID string) ([]liveclass.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := make([]liveclass.Message, 0)
	for _, msg := range repo.db.messages {
		if msg.LiveClassID != classID {
			continue
		}
		if !all && msg.IsPrivate && msg.SenderID != viewerID {
			continue
		}
		msgs = append(msgs, *msg)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (repo *liveClassRepository) CreateRecording(ctx context.Context, rec liveclass.Recording) (liveclass.Recording, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec.ID = uuid.New().String()
	repo.db.recordings[rec.ID] = &rec
	return rec, nil
}

func (repo *liveClassRepository) GetRecordingByID(ctx context.Context, id string) (liveclass.Recording, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.recordings[id]; ok {
		return *rec, nil
	}
	return liveclass.Recording{}, liveclass.ErrRecordingNotFound
}

func (repo *liveClassRepository) QueryRecordings(ctx context.Context, teacherID, enrolledStudentID string, pg core.Pagination) (int, []liveclass.Recording, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]liveclass.Recording, 0)
	for _, rec := range repo.db.recordings {
		lc, ok := repo.db.classes[rec.LiveClassID]
		if !ok {
			continue
		}
		if teacherID != "" && lc.TeacherID != teacherID {
			continue
		}
		if enrolledStudentID != "" && !repo.db.isActivelyEnrolled(enrolledStudentID, lc.CourseID) {
			continue
		}
		recs = append(recs, *rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })

	total := len(recs)
	lo, hi := paginate(total, pg)
	return total, recs[lo:hi], nil
}

func (repo *liveClassRepository) UpdateRecording(ctx context.Context, rec liveclass.Recording) (liveclass.Recording, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.recordings[rec.ID]; !ok {
		return liveclass.Recording{}, liveclass.ErrRecordingNotFound
	}
	repo.db.recordings[rec.ID] = &rec
	return rec, nil
}

func (repo *liveClassRepository) DeleteRecording(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.recordings[id]; !ok {
		return liveclass.ErrRecordingNotFound
	}
	delete(repo.db.recordings, id)
	return nil
}

// countActive counts the slot-occupying participant statuses. Callers hold the lock.
func (repo *liveClassRepository) countActive(classID string) int {
	n := 0
	for _, p := range repo.db.participants {
		if p.LiveClassID != classID {
			continue
		}
		for _, s := range liveclass.ActiveParticipantStatuses {
			if p.Status == s {
				n++
				break
			}
		}
	}
	return n
}
