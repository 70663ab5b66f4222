package material_test

import (
	"context"
	"io"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/enrollment"
	"github.com/elimu-cd/elimu/core/material"
	"github.com/elimu-cd/elimu/core/user"
	logsvc "github.com/elimu-cd/elimu/services/logger"
	inmemdb "github.com/elimu-cd/elimu/storage/database/inmem"
	"github.com/elimu-cd/elimu/storage/files"
	testutil "github.com/elimu-cd/elimu/tests"
)

type fixture struct {
	db      *inmemdb.DB
	repo    material.Repository
	enrRepo enrollment.Repository
	svc     *material.Service

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
	repo := inmemdb.NewMaterialRepository(db)

	store, err := files.NewLocal(t.TempDir(), 1<<20)
	require.NoError(t, err)
	logger := logsvc.NewConsoleLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))

	teacher := testutil.CreateUser(t, usrRepo, "prof", "prof@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.cd", "", user.RoleStudent, true)
	cat := testutil.CreateCategory(t, catRepo, "Programming")
	course := testutil.CreateCourse(t, catRepo, "Go for Beginners", teacher.ID, cat.ID, catalog.StatusPublished, 50)
	testutil.Enroll(t, enrRepo, student.ID, course.ID)

	return &fixture{
		db:      db,
		repo:    repo,
		enrRepo: enrRepo,
		svc:     material.NewService(repo, store, enrollment.NewService(enrRepo), logger),
		teacher: teacher,
		student: student,
		course:  course,
	}
}

func (f *fixture) upload(t *testing.T, title, filename string) material.Material {
	t.Helper()
	m, err := f.svc.Upload(
		context.Background(),
		f.teacher,
		material.NewMaterial{Title: title, CourseID: f.course.ID},
		filename,
		strings.NewReader("file content"),
	)
	require.NoError(t, err)
	return m
}

func Test_Service_Upload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m := f.upload(t, "Lecture notes", "notes.pdf")
	assert.Equal(t, material.TypeDocument, m.Type) // defaulted
	assert.Equal(t, "pdf", m.FileExtension)
	assert.Equal(t, int64(len("file content")), m.FileSize)
	assert.Equal(t, f.teacher.ID, m.TeacherID)
	assert.True(t, m.IsDownloadable) // defaulted

	// extension allow-list
	_, err := f.svc.Upload(ctx, f.teacher, material.NewMaterial{Title: "Nope", CourseID: f.course.ID},
		"malware.exe", strings.NewReader("nope"))
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "error = %T, want *core.ValidationError", err)
	assert.Equal(t, "file", vErr.Fields[0].Field)

	// unknown course
	_, err = f.svc.Upload(ctx, f.teacher, material.NewMaterial{Title: "Nope", CourseID: "lol"},
		"notes.pdf", strings.NewReader("nope"))
	vErr, ok = err.(*core.ValidationError)
	require.True(t, ok, "error = %T, want *core.ValidationError", err)
	assert.Equal(t, "course_id", vErr.Fields[0].Field)
}

func Test_Service_Download(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m := f.upload(t, "Lecture notes", "notes.pdf")

	// an unenrolled student is refused
	stranger := testutil.CreateUser(t, inmemdb.NewUserRepository(f.db), "lurker", "lurker@test.cd", "", user.RoleStudent, true)
	_, _, err := f.svc.Download(ctx, stranger, m.ID)
	_, ok := errors.Cause(err).(*core.PermissionError)
	assert.True(t, ok, "error = %T, want *core.PermissionError", err)

	// the enrolled student gets the file and the counter moves
	got, file, err := f.svc.Download(ctx, f.student, m.ID)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "file content", string(content))
	assert.Equal(t, 1, got.DownloadCount)

	refreshed, err := f.svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.DownloadCount)
}

func Test_Service_Download_notDownloadable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	no := false
	m, err := f.svc.Upload(ctx, f.teacher,
		material.NewMaterial{Title: "View only", CourseID: f.course.ID, IsDownloadable: &no},
		"slides.pptx", strings.NewReader("slides"))
	require.NoError(t, err)

	_, _, err = f.svc.Download(ctx, f.student, m.ID)
	assert.EqualError(t, err, "Material is not downloadable")

	// views are still allowed
	require.NoError(t, f.svc.RecordView(ctx, f.student, m.ID))
	refreshed, err := f.svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.ViewCount)
	assert.Equal(t, 0, refreshed.DownloadCount)
}

func Test_Service_Stats(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m := f.upload(t, "Lecture notes", "notes.pdf")
	require.NoError(t, f.svc.RecordView(ctx, f.student, m.ID))
	require.NoError(t, f.svc.RecordView(ctx, f.student, m.ID))
	_, file, err := f.svc.Download(ctx, f.student, m.ID)
	require.NoError(t, err)
	file.Close()

	// stats are for the owning teacher only
	_, err = f.svc.Stats(ctx, f.student, m.ID)
	_, ok := errors.Cause(err).(*core.PermissionError)
	assert.True(t, ok, "error = %T, want *core.PermissionError", err)

	stats, err := f.svc.Stats(ctx, f.teacher, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ViewCount)
	assert.Equal(t, 1, stats.DownloadCount)
	assert.Len(t, stats.RecentAccesses, 3)

	count, accesses, err := f.svc.QueryAccesses(ctx, f.teacher.ID, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Len(t, accesses, 3)
}

func Test_Service_Query_visibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.upload(t, "Lecture notes", "notes.pdf")

	// the enrolled student sees the course's materials
	count, _, err := f.svc.Query(ctx, f.student, material.QueryFilter{}, nil, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// an unenrolled student sees nothing
	stranger := testutil.CreateUser(t, inmemdb.NewUserRepository(f.db), "lurker", "lurker@test.cd", "", user.RoleStudent, true)
	count, _, err = f.svc.Query(ctx, stranger, material.QueryFilter{}, nil, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// the teacher sees their own uploads
	count, _, err = f.svc.QueryTeacherMaterials(ctx, f.teacher.ID, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func Test_Service_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m := f.upload(t, "Lecture notes", "notes.pdf")

	err := f.svc.Delete(ctx, f.student, m.ID)
	_, ok := errors.Cause(err).(*core.PermissionError)
	assert.True(t, ok, "error = %T, want *core.PermissionError", err)

	require.NoError(t, f.svc.Delete(ctx, f.teacher, m.ID))
	_, err = f.svc.Get(ctx, m.ID)
	assert.Equal(t, material.ErrNotFound, errors.Cause(err))
}

func Test_Service_folders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	nf := material.NewFolder{Name: "Week 1", CourseID: f.course.ID}
	folder, err := f.svc.CreateFolder(ctx, f.teacher, nf)
	require.NoError(t, err)
	assert.Equal(t, f.teacher.ID, folder.CreatedBy)

	// duplicate (name, course, parent)
	_, err = f.svc.CreateFolder(ctx, f.teacher, nf)
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "error = %T, want *core.ValidationError", err)
	assert.Equal(t, "name", vErr.Fields[0].Field)

	// the same name under a different parent is fine
	sub, err := f.svc.CreateFolder(ctx, f.teacher, material.NewFolder{
		Name: "Week 1", CourseID: f.course.ID, ParentID: folder.ID,
	})
	require.NoError(t, err)

	// child counts are computed on read
	refreshed, err := f.svc.GetFolder(ctx, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.SubfoldersCount)

	// renaming into a collision is refused
	other, err := f.svc.CreateFolder(ctx, f.teacher, material.NewFolder{Name: "Week 2", CourseID: f.course.ID})
	require.NoError(t, err)
	_, err = f.svc.UpdateFolder(ctx, other.ID, material.UpdateFolder{Name: "Week 1"})
	vErr, ok = err.(*core.ValidationError)
	require.True(t, ok, "error = %T, want *core.ValidationError", err)
	assert.Equal(t, "name", vErr.Fields[0].Field)

	// unknown parent
	_, err = f.svc.CreateFolder(ctx, f.teacher, material.NewFolder{
		Name: "Orphan", CourseID: f.course.ID, ParentID: "lol",
	})
	vErr, ok = err.(*core.ValidationError)
	require.True(t, ok, "error = %T, want *core.ValidationError", err)
	assert.Equal(t, "parent_folder", vErr.Fields[0].Field)

	// deleting cascades through the whole subtree
	grandchild, err := f.svc.CreateFolder(ctx, f.teacher, material.NewFolder{
		Name: "Day 1", CourseID: f.course.ID, ParentID: sub.ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteFolder(ctx, folder.ID))
	_, err = f.svc.GetFolder(ctx, sub.ID)
	assert.Equal(t, material.ErrFolderNotFound, errors.Cause(err))
	_, err = f.svc.GetFolder(ctx, grandchild.ID)
	assert.Equal(t, material.ErrFolderNotFound, errors.Cause(err))
}
