package liveclass_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/enrollment"
	"github.com/elimu-cd/elimu/core/liveclass"
	"github.com/elimu-cd/elimu/core/user"
	inmemdb "github.com/elimu-cd/elimu/storage/database/inmem"
	testutil "github.com/elimu-cd/elimu/tests"
)

type fixture struct {
	db      *inmemdb.DB
	lcRepo  liveclass.Repository
	enrRepo enrollment.Repository
	svc     *liveclass.Service

	teacher user.User
	student user.User
	course  catalog.Course
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	catRepo := inmemdb.NewCatalogRepository(db)
	enrRepo := inmemdb.NewEnrollmentRepository(db)
	lcRepo := inmemdb.NewLiveClassRepository(db)

	teacher := testutil.CreateUser(t, usrRepo, "prof", "prof@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.cd", "", user.RoleStudent, true)
	cat := testutil.CreateCategory(t, catRepo, "Programming")
	course := testutil.CreateCourse(t, catRepo, "Go for Beginners", teacher.ID, cat.ID, catalog.StatusPublished, 50)
	testutil.Enroll(t, enrRepo, student.ID, course.ID)

	return &fixture{
		db:      db,
		lcRepo:  lcRepo,
		enrRepo: enrRepo,
		svc:     liveclass.NewService(lcRepo, enrollment.NewService(enrRepo)),
		teacher: teacher,
		student: student,
		course:  course,
	}
}

func (f *fixture) newStudent(t *testing.T, uname string) user.User {
	t.Helper()
	s := testutil.CreateUser(t, inmemdb.NewUserRepository(f.db), uname, uname+"@test.cd", "", user.RoleStudent, true)
	testutil.Enroll(t, f.enrRepo, s.ID, f.course.ID)
	return s
}

func Test_Service_lifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	lc := testutil.CreateLiveClass(t, f.lcRepo, "Go Q&A", f.teacher.ID, f.course.ID, liveclass.StatusScheduled, 50)

	// only the owner may start; others get a not-found
	_, err := f.svc.Start(ctx, f.student, lc.ID)
	assert.Equal(t, liveclass.ErrNotFound, errors.Cause(err))

	started, err := f.svc.Start(ctx, f.teacher, lc.ID)
	require.NoError(t, err)
	assert.Equal(t, liveclass.StatusLive, started.Status)
	assert.False(t, started.StartedAt.IsZero())

	// a live class cannot be started again or cancelled
	_, err = f.svc.Start(ctx, f.teacher, lc.ID)
	assert.EqualError(t, err, "Live class is not scheduled")
	_, err = f.svc.Cancel(ctx, f.teacher, lc.ID)
	assert.EqualError(t, err, "Live class is not scheduled")

	ended, err := f.svc.End(ctx, f.teacher, lc.ID)
	require.NoError(t, err)
	assert.Equal(t, liveclass.StatusEnded, ended.Status)
	assert.False(t, ended.EndedAt.IsZero())

	_, err = f.svc.End(ctx, f.teacher, lc.ID)
	assert.EqualError(t, err, "Live class is not live")
}

func Test_Service_Cancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	lc := testutil.CreateLiveClass(t, f.lcRepo, "Go Q&A", f.teacher.ID, f.course.ID, liveclass.StatusScheduled, 50)

	cancelled, err := f.svc.Cancel(ctx, f.teacher, lc.ID)
	require.NoError(t, err)
	assert.Equal(t, liveclass.StatusCancelled, cancelled.Status)

	// cancelled is terminal
	_, err = f.svc.Start(ctx, f.teacher, lc.ID)
	assert.EqualError(t, err, "Live class is not scheduled")
}

func Test_Service_Join(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	lc := testutil.CreateLiveClass(t, f.lcRepo, "Go Q&A", f.teacher.ID, f.course.ID, liveclass.StatusScheduled, 50)

	// enrollment in the parent course is required
	stranger := testutil.CreateUser(t, inmemdb.NewUserRepository(f.db), "lurker", "lurker@test.cd", "", user.RoleStudent, true)
	_, _, err := f.svc.Join(ctx, stranger, lc.ID)
	_, ok := errors.Cause(err).(*core.PermissionError)
	assert.True(t, ok, "error = %T, want *core.PermissionError", err)

	p, created, err := f.svc.Join(ctx, f.student, lc.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, liveclass.ParticipantRegistered, p.Status)

	refreshed, err := f.svc.Get(ctx, lc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.CurrentParticipants)

	// joining again is idempotent
	again, created, err := f.svc.Join(ctx, f.student, lc.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.ID, again.ID)
}

func Test_Service_Join_capacity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	lc := testutil.CreateLiveClass(t, f.lcRepo, "Tiny Class", f.teacher.ID, f.course.ID, liveclass.StatusScheduled, 1)
	other := f.newStudent(t, "late")

	_, _, err := f.svc.Join(ctx, f.student, lc.ID)
	require.NoError(t, err)

	_, _, err = f.svc.Join(ctx, other, lc.ID)
	assert.EqualError(t, err, "Live class is full")

	// leaving frees the slot and a rejoin reactivates the old row
	require.NoError(t, f.svc.Leave(ctx, f.student, lc.ID))
	refreshed, err := f.svc.Get(ctx, lc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, refreshed.CurrentParticipants)

	_, created, err := f.svc.Join(ctx, other, lc.ID)
	require.NoError(t, err)
	assert.True(t, created)

	// leaving without a participation
	err = f.svc.Leave(ctx, f.student, lc.ID)
	assert.Equal(t, liveclass.ErrParticipantNotFound, errors.Cause(err))
}

func Test_Service_Approve(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	lc := testutil.CreateLiveClass(t, f.lcRepo, "Go Q&A", f.teacher.ID, f.course.ID, liveclass.StatusScheduled, 50)
	p, _, err := f.svc.Join(ctx, f.student, lc.ID)
	require.NoError(t, err)

	// a non-owner gets a not-found
	_, err = f.svc.Approve(ctx, f.student, lc.ID, p.ID)
	assert.Equal(t, liveclass.ErrNotFound, errors.Cause(err))

	approved, err := f.svc.Approve(ctx, f.teacher, lc.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, liveclass.ParticipantApproved, approved.Status)
	assert.Equal(t, f.teacher.ID, approved.ApprovedBy)
	assert.False(t, approved.ApprovedAt.IsZero())

	_, err = f.svc.Approve(ctx, f.teacher, lc.ID, "lol")
	assert.Equal(t, liveclass.ErrParticipantNotFound, errors.Cause(err))
}

func Test_Service_messages_visibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	lc := testutil.CreateLiveClass(t, f.lcRepo, "Go Q&A", f.teacher.ID, f.course.ID, liveclass.StatusLive, 50)
	other := f.newStudent(t, "user02")

	post := func(sender user.User, text string, private bool) {
		t.Helper()
		nm := liveclass.NewMessage{Message: text, IsPrivate: private}
		require.NoError(t, nm.Validate(core.Validate))
		_, err := f.svc.PostMessage(ctx, sender, lc.ID, nm)
		require.NoError(t, err)
	}
	post(f.student, "hello all", false)
	post(f.student, "private question", true)
	post(other, "another private one", true)

	// the owning teacher sees everything
	msgs, err := f.svc.QueryMessages(ctx, f.teacher, lc.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	// a student sees public messages plus their own private ones
	msgs, err = f.svc.QueryMessages(ctx, f.student, lc.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		if m.IsPrivate {
			assert.Equal(t, f.student.ID, m.SenderID)
		}
	}
}

func Test_NewMessage_Validate_defaults(t *testing.T) {
	nm := liveclass.NewMessage{Message: "  hello  "}
	require.NoError(t, nm.Validate(core.Validate))
	assert.Equal(t, "hello", nm.Message)
	assert.Equal(t, liveclass.MessageText, nm.Type)

	empty := liveclass.NewMessage{}
	assert.Error(t, empty.Validate(core.Validate))
}

func Test_Service_recordings(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	lc := testutil.CreateLiveClass(t, f.lcRepo, "Go Q&A", f.teacher.ID, f.course.ID, liveclass.StatusEnded, 50)

	nr := liveclass.NewRecording{
		LiveClassID:  lc.ID,
		Title:        "Go Q&A session",
		RecordingURL: "https://cdn.test.cd/recordings/go-qa.mp4",
	}
	require.NoError(t, nr.Validate(core.Validate))

	// only the owning teacher may attach recordings
	_, err := f.svc.CreateRecording(ctx, f.student, nr)
	_, ok := errors.Cause(err).(*core.PermissionError)
	assert.True(t, ok, "error = %T, want *core.PermissionError", err)

	rec, err := f.svc.CreateRecording(ctx, f.teacher, nr)
	require.NoError(t, err)

	// the enrolled student sees it, an unenrolled one does not
	count, recs, err := f.svc.QueryRecordings(ctx, f.student, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.ID, recs[0].ID)

	stranger := testutil.CreateUser(t, inmemdb.NewUserRepository(f.db), "lurker", "lurker@test.cd", "", user.RoleStudent, true)
	count, _, err = f.svc.QueryRecordings(ctx, stranger, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// update and delete stay owner-gated
	_, err = f.svc.UpdateRecording(ctx, f.student, rec.ID, liveclass.UpdateRecording{Title: "Hijacked"})
	_, ok = errors.Cause(err).(*core.PermissionError)
	assert.True(t, ok, "error = %T, want *core.PermissionError", err)

	require.NoError(t, f.svc.DeleteRecording(ctx, f.teacher, rec.ID))
	_, err = f.svc.GetRecording(ctx, rec.ID)
	assert.Equal(t, liveclass.ErrRecordingNotFound, errors.Cause(err))
}
