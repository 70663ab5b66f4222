package enrollment_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/enrollment"
	"github.com/elimu-cd/elimu/core/user"
	inmemdb "github.com/elimu-cd/elimu/storage/database/inmem"
	testutil "github.com/elimu-cd/elimu/tests"
)

type fixture struct {
	db      *inmemdb.DB
	catRepo catalog.Repository
	svc     *enrollment.Service

	teacher user.User
	student user.User
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	return &fixture{
		db:      db,
		catRepo: inmemdb.NewCatalogRepository(db),
		svc:     enrollment.NewService(inmemdb.NewEnrollmentRepository(db)),
		teacher: testutil.CreateUser(t, usrRepo, "prof", "prof@test.cd", "", user.RoleTeacher, true),
		student: testutil.CreateUser(t, usrRepo, "hero", "hero@test.cd", "", user.RoleStudent, true),
	}
}

func (f *fixture) course(t *testing.T, title, status string, maxStudents int) catalog.Course {
	t.Helper()
	cat := testutil.CreateCategory(t, f.catRepo, title+" category")
	return testutil.CreateCourse(t, f.catRepo, title, f.teacher.ID, cat.ID, status, maxStudents)
}

func Test_Service_Enroll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	course := f.course(t, "Go for Beginners", catalog.StatusPublished, 50)

	enr, err := f.svc.Enroll(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, enr.IsActive)
	assert.Equal(t, course.ID, enr.CourseID)

	refreshed, err := f.catRepo.GetCourseByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.CurrentStudents)

	// double enrollment
	_, err = f.svc.Enroll(ctx, f.student.ID, course.ID)
	assert.EqualError(t, err, "Already enrolled")
}

func Test_Service_Enroll_unpublishedCourse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	draft := f.course(t, "Draft Course", catalog.StatusDraft, 50)
	_, err := f.svc.Enroll(ctx, f.student.ID, draft.ID)
	assert.Equal(t, enrollment.ErrCourseNotFound, errors.Cause(err))

	_, err = f.svc.Enroll(ctx, f.student.ID, "lol")
	assert.Equal(t, enrollment.ErrCourseNotFound, errors.Cause(err))
}

func Test_Service_Enroll_capacity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	course := f.course(t, "Tiny Course", catalog.StatusPublished, 1)
	other := testutil.CreateUser(t, inmemdb.NewUserRepository(f.db), "late", "late@test.cd", "", user.RoleStudent, true)

	_, err := f.svc.Enroll(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	_, err = f.svc.Enroll(ctx, other.ID, course.ID)
	assert.EqualError(t, err, "Course is full")

	// unenrolling frees the slot
	require.NoError(t, f.svc.Unenroll(ctx, f.student.ID, course.ID))
	_, err = f.svc.Enroll(ctx, other.ID, course.ID)
	assert.NoError(t, err)
}

func Test_Service_Unenroll_reactivation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	course := f.course(t, "Go for Beginners", catalog.StatusPublished, 50)

	first, err := f.svc.Enroll(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Unenroll(ctx, f.student.ID, course.ID))

	refreshed, err := f.catRepo.GetCourseByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, refreshed.CurrentStudents)

	// unenrolling twice
	err = f.svc.Unenroll(ctx, f.student.ID, course.ID)
	assert.Equal(t, enrollment.ErrNotFound, errors.Cause(err))

	// re-enrolling reactivates the same row
	second, err := f.svc.Enroll(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsActive)
}

func Test_Service_QueryMine(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs1 := f.course(t, "Course One", catalog.StatusPublished, 50)
	crs2 := f.course(t, "Course Two", catalog.StatusPublished, 50)

	testutil.Enroll(t, inmemdb.NewEnrollmentRepository(f.db), f.student.ID, crs1.ID)
	testutil.Enroll(t, inmemdb.NewEnrollmentRepository(f.db), f.student.ID, crs2.ID)
	require.NoError(t, f.svc.Unenroll(ctx, f.student.ID, crs2.ID))

	enrs, err := f.svc.QueryMine(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, enrs, 1) // active only
	assert.Equal(t, crs1.ID, enrs[0].CourseID)

	enrolled, err := f.svc.IsActivelyEnrolled(ctx, f.student.ID, crs1.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)
	enrolled, err = f.svc.IsActivelyEnrolled(ctx, f.student.ID, crs2.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)
}
