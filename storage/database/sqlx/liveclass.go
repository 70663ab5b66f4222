package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/liveclass"
)

type liveClassRow struct {
	ID                  string    `db:"id"`
	Title               string    `db:"title"`
	Description         string    `db:"description"`
	CourseID            string    `db:"course_id"`
	TeacherID           string    `db:"teacher_id"`
	ScheduledAt         time.Time `db:"scheduled_at"`
	DurationMinutes     int       `db:"duration_minutes"`
	Status              string    `db:"status"`
	MeetingURL          string    `db:"meeting_url"`
	MeetingID           string    `db:"meeting_id"`
	MeetingPassword     string    `db:"meeting_password"`
	MaxParticipants     int       `db:"max_participants"`
	CurrentParticipants int       `db:"current_participants"`
	IsPublic            bool      `db:"is_public"`
	RequiresApproval    bool      `db:"requires_approval"`
	WillBeRecorded      bool      `db:"will_be_recorded"`
	RecordingURL        string    `db:"recording_url"`
	TotalViews          int       `db:"total_views"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
	StartedAt           null.Time `db:"started_at"`
	EndedAt             null.Time `db:"ended_at"`
}

func (r liveClassRow) toLiveClass() liveclass.LiveClass {
	return liveclass.LiveClass{
		ID:                  r.ID,
		Title:               r.Title,
		Description:         r.Description,
		CourseID:            r.CourseID,
		TeacherID:           r.TeacherID,
		ScheduledAt:         r.ScheduledAt,
		DurationMinutes:     r.DurationMinutes,
		Status:              r.Status,
		MeetingURL:          r.MeetingURL,
		MeetingID:           r.MeetingID,
		MeetingPassword:     r.MeetingPassword,
		MaxParticipants:     r.MaxParticipants,
		CurrentParticipants: r.CurrentParticipants,
		IsPublic:            r.IsPublic,
		RequiresApproval:    r.RequiresApproval,
		WillBeRecorded:      r.WillBeRecorded,
		RecordingURL:        r.RecordingURL,
		TotalViews:          r.TotalViews,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
		StartedAt:           r.StartedAt.Time,
		EndedAt:             r.EndedAt.Time,
	}
}

var liveClassColumns = []string{
	"id", "title", "description", "course_id", "teacher_id", "scheduled_at",
	"duration_minutes", "status", "meeting_url", "meeting_id", "meeting_password",
	"max_participants", "current_participants", "is_public", "requires_approval",
	"will_be_recorded", "recording_url", "total_views", "created_at", "updated_at",
	"started_at", "ended_at",
}

type participantRow struct {
	ID                 string      `db:"id"`
	StudentID          string      `db:"student_id"`
	LiveClassID        string      `db:"live_class_id"`
	Status             string      `db:"status"`
	JoinedAt           null.Time   `db:"joined_at"`
	LeftAt             null.Time   `db:"left_at"`
	AttendanceDuration int         `db:"attendance_duration"`
	RegisteredAt       time.Time   `db:"registered_at"`
	ApprovedAt         null.Time   `db:"approved_at"`
	ApprovedBy         null.String `db:"approved_by"`
}

func (r participantRow) toParticipant() liveclass.Participant {
	return liveclass.Participant{
		ID:                 r.ID,
		StudentID:          r.StudentID,
		LiveClassID:        r.LiveClassID,
		Status:             r.Status,
		JoinedAt:           r.JoinedAt.Time,
		LeftAt:             r.LeftAt.Time,
		AttendanceDuration: r.AttendanceDuration,
		RegisteredAt:       r.RegisteredAt,
		ApprovedAt:         r.ApprovedAt.Time,
		ApprovedBy:         r.ApprovedBy.String,
	}
}

var participantColumns = []string{
	"id", "student_id", "live_class_id", "status", "joined_at", "left_at",
	"attendance_duration", "registered_at", "approved_at", "approved_by",
}

type messageRow struct {
	ID          string      `db:"id"`
	LiveClassID string      `db:"live_class_id"`
	SenderID    string      `db:"sender_id"`
	Message     string      `db:"message"`
	Type        string      `db:"message_type"`
	IsPrivate   bool        `db:"is_private"`
	IsAnswered  bool        `db:"is_answered"`
	ParentID    null.String `db:"parent_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r messageRow) toMessage() liveclass.Message {
	return liveclass.Message{
		ID:          r.ID,
		LiveClassID: r.LiveClassID,
		SenderID:    r.SenderID,
		Message:     r.Message,
		Type:        r.Type,
		IsPrivate:   r.IsPrivate,
		IsAnswered:  r.IsAnswered,
		ParentID:    r.ParentID.String,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type recordingRow struct {
	ID              string    `db:"id"`
	LiveClassID     string    `db:"live_class_id"`
	Title           string    `db:"title"`
	Description     string    `db:"description"`
	RecordingURL    string    `db:"recording_url"`
	RecordingFile   string    `db:"recording_file"`
	DurationMinutes int       `db:"duration_minutes"`
	FileSize        int64     `db:"file_size"`
	IsPublic        bool      `db:"is_public"`
	IsDownloadable  bool      `db:"is_downloadable"`
	ViewCount       int       `db:"view_count"`
	DownloadCount   int       `db:"download_count"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

var recordingColumns = []string{
	"id", "live_class_id", "title", "description", "recording_url", "recording_file",
	"duration_minutes", "file_size", "is_public", "is_downloadable", "view_count",
	"download_count", "created_at", "updated_at",
}

type liveClassRepository struct {
	db *sqlx.DB
}

var _ liveclass.Repository = (*liveClassRepository)(nil)

func NewLiveClassRepository(db *sqlx.DB) *liveClassRepository {
	return &liveClassRepository{db: db}
}

func (repo *liveClassRepository) CreateLiveClass(ctx context.Context, lc liveclass.LiveClass) (liveclass.LiveClass, error) {
	lc.ID = uuid.New().String()
	query, args, err := psql.Insert("live_classes").
		Columns(liveClassColumns[:len(liveClassColumns)-2]...). // started_at/ended_at start NULL
		Values(
			lc.ID, lc.Title, lc.Description, lc.CourseID, lc.TeacherID, lc.ScheduledAt,
			lc.DurationMinutes, lc.Status, lc.MeetingURL, lc.MeetingID, lc.MeetingPassword,
			lc.MaxParticipants, lc.CurrentParticipants, lc.IsPublic, lc.RequiresApproval,
			lc.WillBeRecorded, lc.RecordingURL, lc.TotalViews, lc.CreatedAt, lc.UpdatedAt,
		).ToSql()
	if err != nil {
		return liveclass.LiveClass{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return liveclass.LiveClass{}, errors.Wrap(err, "inserting live class")
	}
	return lc, nil
}

func (repo *liveClassRepository) GetLiveClassByID(ctx context.Context, id string) (liveclass.LiveClass, error) {
	query, args, err := psql.Select(liveClassColumns...).From("live_classes").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return liveclass.LiveClass{}, errors.Wrap(err, "building query")
	}
	var row liveClassRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return liveclass.LiveClass{}, trapNoRowsErr(err, liveclass.ErrNotFound)
	}
	return row.toLiveClass(), nil
}

func (repo *liveClassRepository) QueryLiveClasses(ctx context.Context, filter *liveclass.QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []liveclass.LiveClass, error) {
	base := psql.Select().From("live_classes")
	if filter != nil {
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			base = base.Where(sq.Or{sq.ILike{"title": pattern}, sq.ILike{"description": pattern}})
		}
		if filter.CourseID != "" {
			base = base.Where(sq.Eq{"course_id": filter.CourseID})
		}
		if filter.Status != "" {
			base = base.Where(sq.Eq{"status": filter.Status})
		}
		if filter.IsPublic != nil {
			base = base.Where(sq.Eq{"is_public": *filter.IsPublic})
		}
		if filter.TeacherID != "" {
			base = base.Where(sq.Eq{"teacher_id": filter.TeacherID})
		}
		if filter.EnrolledStudentID != "" {
			base = base.Where(sq.Expr(
				"course_id IN (SELECT course_id FROM course_enrollments WHERE student_id = ? AND is_active)",
				filter.EnrolledStudentID))
		}
		if !filter.ScheduledAfter.IsZero() {
			base = base.Where(sq.GtOrEq{"scheduled_at": filter.ScheduledAfter})
		}
	}

	total, err := count(ctx, repo.db, base.Columns("COUNT(*)"))
	if err != nil {
		return 0, nil, err
	}

	qb := applyPagination(applyOrdering(base.Columns(liveClassColumns...), ordering, "scheduled_at DESC"), pg)
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, nil, errors.Wrap(err, "building query")
	}
	var rows []liveClassRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return 0, nil, errors.Wrap(err, "querying live classes")
	}
	classes := make([]liveclass.LiveClass, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.toLiveClass())
	}
	return total, classes, nil
}

func (repo *liveClassRepository) UpdateLiveClass(ctx context.Context, lc liveclass.LiveClass) (liveclass.LiveClass, error) {
	query, args, err := psql.Update("live_classes").
		Set("title", lc.Title).
		Set("description", lc.Description).
		Set("scheduled_at", lc.ScheduledAt).
		Set("duration_minutes", lc.DurationMinutes).
		Set("meeting_url", lc.MeetingURL).
		Set("meeting_id", lc.MeetingID).
		Set("meeting_password", lc.MeetingPassword).
		Set("max_participants", lc.MaxParticipants).
		Set("is_public", lc.IsPublic).
		Set("requires_approval", lc.RequiresApproval).
		Set("will_be_recorded", lc.WillBeRecorded).
		Set("recording_url", lc.RecordingURL).
		Set("updated_at", lc.UpdatedAt).
		Where(sq.Eq{"id": lc.ID}).
		ToSql()
	if err != nil {
		return liveclass.LiveClass{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return liveclass.LiveClass{}, errors.Wrap(err, "updating live class")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return liveclass.LiveClass{}, liveclass.ErrNotFound
	}
	return repo.GetLiveClassByID(ctx, lc.ID)
}

func (repo *liveClassRepository) DeleteLiveClass(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM live_classes WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting live class")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return liveclass.ErrNotFound
	}
	return nil
}

// TransitionStatus is a conditional update: the status only moves when the
// current value matches `from`, which serializes concurrent transitions.
func (repo *liveClassRepository) TransitionStatus(ctx context.Context, id, from, to string, at time.Time) (liveclass.LiveClass, error) {
	qb := psql.Update("live_classes").
		Set("status", to).
		Set("updated_at", at).
		Where(sq.Eq{"id": id, "status": from})
	switch to {
	case liveclass.StatusLive:
		qb = qb.Set("started_at", at)
	case liveclass.StatusEnded:
		qb = qb.Set("ended_at", at)
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return liveclass.LiveClass{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return liveclass.LiveClass{}, errors.Wrap(err, "transitioning status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err = repo.GetLiveClassByID(ctx, id); err != nil {
			return liveclass.LiveClass{}, err
		}
		return liveclass.LiveClass{}, liveclass.ErrInvalidStatus
	}
	return repo.GetLiveClassByID(ctx, id)
}

// Join admits the student while holding the class row lock; see Enroll for the
// equivalent pattern on courses.
func (repo *liveClassRepository) Join(ctx context.Context, studentID, classID string) (liveclass.Participant, bool, error) {
	var (
		p       liveclass.Participant
		created bool
	)
	err := runInTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var maxParticipants int
		err := tx.GetContext(ctx, &maxParticipants,
			"SELECT max_participants FROM live_classes WHERE id = $1 FOR UPDATE", classID)
		if err != nil {
			return trapNoRowsErr(err, liveclass.ErrNotFound)
		}

		active, err := countActiveParticipants(ctx, tx, classID)
		if err != nil {
			return err
		}
		if active >= maxParticipants {
			return liveclass.ErrClassFull
		}

		var existing participantRow
		err = tx.GetContext(ctx, &existing,
			"SELECT "+joinColumns(participantColumns)+
				" FROM live_class_participants WHERE student_id = $1 AND live_class_id = $2",
			studentID, classID)
		if err != nil && errors.Cause(err) != sql.ErrNoRows {
			return errors.Wrap(err, "finding participant")
		}

		if err == nil {
			if existing.Status == liveclass.ParticipantCancelled {
				if _, err = tx.ExecContext(ctx,
					"UPDATE live_class_participants SET status = $1 WHERE id = $2",
					liveclass.ParticipantRegistered, existing.ID); err != nil {
					return errors.Wrap(err, "reactivating participant")
				}
				existing.Status = liveclass.ParticipantRegistered
			}
			p = existing.toParticipant()
		} else {
			created = true
			p = liveclass.Participant{
				ID:           uuid.New().String(),
				StudentID:    studentID,
				LiveClassID:  classID,
				Status:       liveclass.ParticipantRegistered,
				RegisteredAt: time.Now().UTC(),
			}
			query, args, err := psql.Insert("live_class_participants").
				Columns("id", "student_id", "live_class_id", "status", "registered_at").
				Values(p.ID, p.StudentID, p.LiveClassID, p.Status, p.RegisteredAt).
				ToSql()
			if err != nil {
				return errors.Wrap(err, "building query")
			}
			if _, err = tx.ExecContext(ctx, query, args...); err != nil {
				return errors.Wrap(err, "inserting participant")
			}
		}
		return recountParticipants(ctx, tx, classID)
	})
	if err != nil {
		return liveclass.Participant{}, false, err
	}
	return p, created, nil
}

func (repo *liveClassRepository) Leave(ctx context.Context, studentID, classID string) error {
	return runInTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var id string
		err := tx.GetContext(ctx, &id, "SELECT id FROM live_classes WHERE id = $1 FOR UPDATE", classID)
		if err != nil {
			return trapNoRowsErr(err, liveclass.ErrNotFound)
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE live_class_participants SET status = $1, left_at = $2 "+
				"WHERE student_id = $3 AND live_class_id = $4 AND status <> $1",
			liveclass.ParticipantCancelled, time.Now().UTC(), studentID, classID)
		if err != nil {
			return errors.Wrap(err, "cancelling participant")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return liveclass.ErrParticipantNotFound
		}
		return recountParticipants(ctx, tx, classID)
	})
}

func (repo *liveClassRepository) GetParticipantByID(ctx context.Context, classID, participantID string) (liveclass.Participant, error) {
	query, args, err := psql.Select(participantColumns...).
		From("live_class_participants").
		Where(sq.Eq{"id": participantID, "live_class_id": classID}).
		ToSql()
	if err != nil {
		return liveclass.Participant{}, errors.Wrap(err, "building query")
	}
	var row participantRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return liveclass.Participant{}, trapNoRowsErr(err, liveclass.ErrParticipantNotFound)
	}
	return row.toParticipant(), nil
}

func (repo *liveClassRepository) QueryParticipants(ctx context.Context, classID string) ([]liveclass.Participant, error) {
	query, args, err := psql.Select(participantColumns...).
		From("live_class_participants").
		Where(sq.Eq{"live_class_id": classID}).
		OrderBy("registered_at ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []participantRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying participants")
	}
	parts := make([]liveclass.Participant, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, row.toParticipant())
	}
	return parts, nil
}

func (repo *liveClassRepository) ApproveParticipant(ctx context.Context, p liveclass.Participant) (liveclass.Participant, error) {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE live_class_participants SET status = $1, approved_at = $2, approved_by = $3 WHERE id = $4",
		p.Status, p.ApprovedAt, p.ApprovedBy, p.ID)
	if err != nil {
		return liveclass.Participant{}, errors.Wrap(err, "approving participant")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return liveclass.Participant{}, liveclass.ErrParticipantNotFound
	}
	return p, nil
}

func (repo *liveClassRepository) CreateMessage(ctx context.Context, msg liveclass.Message) (liveclass.Message, error) {
	msg.ID = uuid.New().String()
	query, args, err := psql.Insert("live_class_messages").
		Columns("id", "live_class_id", "sender_id", "message", "message_type",
			"is_private", "is_answered", "parent_id", "created_at", "updated_at").
		Values(msg.ID, msg.LiveClassID, msg.SenderID, msg.Message, msg.Type,
			msg.IsPrivate, msg.IsAnswered, null.NewString(msg.ParentID, msg.ParentID != ""),
			msg.CreatedAt, msg.UpdatedAt).
		ToSql()
	if err != nil {
		return liveclass.Message{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return liveclass.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo *liveClassRepository) QueryMessages(ctx context.Context, classID string, all bool, viewerID string) ([]liveclass.Message, error) {
	qb := psql.Select("id", "live_class_id", "sender_id", "message", "message_type",
		"is_private", "is_answered", "parent_id", "created_at", "updated_at").
		From("live_class_messages").
		Where(sq.Eq{"live_class_id": classID}).
		OrderBy("created_at ASC")
	if !all {
		qb = qb.Where(sq.Or{sq.Eq{"is_private": false}, sq.Eq{"sender_id": viewerID}})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []messageRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]liveclass.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toMessage())
	}
	return msgs, nil
}

func (repo *liveClassRepository) CreateRecording(ctx context.Context, rec liveclass.Recording) (liveclass.Recording, error) {
	rec.ID = uuid.New().String()
	query, args, err := psql.Insert("live_class_recordings").
		Columns(recordingColumns...).
		Values(rec.ID, rec.LiveClassID, rec.Title, rec.Description, rec.RecordingURL,
			rec.RecordingFile, rec.DurationMinutes, rec.FileSize, rec.IsPublic,
			rec.IsDownloadable, rec.ViewCount, rec.DownloadCount, rec.CreatedAt, rec.UpdatedAt).
		ToSql()
	if err != nil {
		return liveclass.Recording{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return liveclass.Recording{}, errors.Wrap(err, "inserting recording")
	}
	return rec, nil
}

func (repo *liveClassRepository) GetRecordingByID(ctx context.Context, id string) (liveclass.Recording, error) {
	query, args, err := psql.Select(recordingColumns...).
		From("live_class_recordings").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return liveclass.Recording{}, errors.Wrap(err, "building query")
	}
	var row recordingRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return liveclass.Recording{}, trapNoRowsErr(err, liveclass.ErrRecordingNotFound)
	}
	return liveclass.Recording(row), nil
}

func (repo *liveClassRepository) QueryRecordings(ctx context.Context, teacherID, enrolledStudentID string, pg core.Pagination) (int, []liveclass.Recording, error) {
	base := psql.Select().
		From("live_class_recordings r").
		Join("live_classes lc ON lc.id = r.live_class_id")
	if teacherID != "" {
		base = base.Where(sq.Eq{"lc.teacher_id": teacherID})
	}
	if enrolledStudentID != "" {
		base = base.Where(sq.Expr(
			"lc.course_id IN (SELECT course_id FROM course_enrollments WHERE student_id = ? AND is_active)",
			enrolledStudentID))
	}

	total, err := count(ctx, repo.db, base.Columns("COUNT(*)"))
	if err != nil {
		return 0, nil, err
	}

	cols := make([]string, 0, len(recordingColumns))
	for _, col := range recordingColumns {
		cols = append(cols, "r."+col)
	}
	qb := applyPagination(base.Columns(cols...).OrderBy("r.created_at DESC"), pg)
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, nil, errors.Wrap(err, "building query")
	}
	var rows []recordingRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return 0, nil, errors.Wrap(err, "querying recordings")
	}
	recs := make([]liveclass.Recording, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, liveclass.Recording(row))
	}
	return total, recs, nil
}

func (repo *liveClassRepository) UpdateRecording(ctx context.Context, rec liveclass.Recording) (liveclass.Recording, error) {
	query, args, err := psql.Update("live_class_recordings").
		Set("title", rec.Title).
		Set("description", rec.Description).
		Set("recording_url", rec.RecordingURL).
		Set("duration_minutes", rec.DurationMinutes).
		Set("is_public", rec.IsPublic).
		Set("is_downloadable", rec.IsDownloadable).
		Set("updated_at", rec.UpdatedAt).
		Where(sq.Eq{"id": rec.ID}).
		ToSql()
	if err != nil {
		return liveclass.Recording{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return liveclass.Recording{}, errors.Wrap(err, "updating recording")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return liveclass.Recording{}, liveclass.ErrRecordingNotFound
	}
	return repo.GetRecordingByID(ctx, rec.ID)
}

func (repo *liveClassRepository) DeleteRecording(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM live_class_recordings WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting recording")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return liveclass.ErrRecordingNotFound
	}
	return nil
}

// countActiveParticipants counts the statuses that occupy a slot.
func countActiveParticipants(ctx context.Context, tx *sqlx.Tx, classID string) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From("live_class_participants").
		Where(sq.Eq{"live_class_id": classID, "status": liveclass.ActiveParticipantStatuses}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	var n int
	err = tx.GetContext(ctx, &n, query, args...)
	return n, errors.Wrap(err, "counting participants")
}

// recountParticipants re-derives current_participants from the active rows.
func recountParticipants(ctx context.Context, tx *sqlx.Tx, classID string) error {
	query, args, err := sqlx.In(
		"UPDATE live_classes SET current_participants = "+
			"(SELECT COUNT(*) FROM live_class_participants WHERE live_class_id = ? "+
			"AND status IN (?)) WHERE id = ?",
		classID, liveclass.ActiveParticipantStatuses, classID)
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
	return errors.Wrap(err, "recounting participants")
}
