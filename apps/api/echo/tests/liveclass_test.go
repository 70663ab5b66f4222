package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/elimu-cd/elimu/apps/api/echo"
	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/liveclass"
	"github.com/elimu-cd/elimu/core/user"
	testutil "github.com/elimu-cd/elimu/tests"
)

type lcFixture struct {
	env *env

	teacher user.User
	student user.User
	course  catalog.Course
}

func setupLiveClass(t *testing.T) *lcFixture {
	t.Helper()

	e := setup(t)
	teacher := testutil.CreateUser(t, e.usrRepo, "prof", "prof@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, e.usrRepo, "hero", "hero@test.cd", "", user.RoleStudent, true)
	cat := testutil.CreateCategory(t, e.catRepo, "Programming")
	course := testutil.CreateCourse(t, e.catRepo, "Go for Beginners", teacher.ID, cat.ID, catalog.StatusPublished, 50)
	testutil.Enroll(t, e.enrRepo, student.ID, course.ID)

	return &lcFixture{env: e, teacher: teacher, student: student, course: course}
}

func Test_liveClassApi_create(t *testing.T) {
	f := setupLiveClass(t)
	e := f.env

	// students cannot schedule live classes
	req, rec := newAuthRequest(http.MethodPost, "/v1/live-classes", getToken(t, f.student))
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "permission denied"}),
	}, rec)

	body := marchallObj(t, liveclass.NewLiveClass{
		Title:           "Go Q&A",
		Description:     "Weekly questions and answers",
		CourseID:        f.course.ID,
		ScheduledAt:     time.Now().Add(24 * time.Hour).UTC(),
		DurationMinutes: 60,
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes", getToken(t, f.teacher), body)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var lc liveclass.LiveClass
	unmarchall(t, rec, &lc)
	assert.Equal(t, liveclass.StatusScheduled, lc.Status)
	assert.Equal(t, f.teacher.ID, lc.TeacherID)
}

func Test_liveClassApi_lifecycle(t *testing.T) {
	f := setupLiveClass(t)
	e := f.env

	other := testutil.CreateUser(t, e.usrRepo, "otherprof", "otherprof@test.cd", "", user.RoleTeacher, true)
	lc := testutil.CreateLiveClass(t, e.lcRepo, "Go Q&A", f.teacher.ID, f.course.ID, liveclass.StatusScheduled, 50)

	// a non-owner teacher gets a not-found
	req, rec := newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/start", getToken(t, other))
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "live class not found"}),
	}, rec)

	token := getToken(t, f.teacher)

	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/start", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var started liveclass.LiveClass
	unmarchall(t, rec, &started)
	assert.Equal(t, liveclass.StatusLive, started.Status)
	assert.False(t, started.StartedAt.IsZero())

	// a live class cannot be started again or cancelled
	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/start", token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "Live class is not scheduled"}),
	}, rec)
	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/cancel", token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "Live class is not scheduled"}),
	}, rec)

	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/end", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ended liveclass.LiveClass
	unmarchall(t, rec, &ended)
	assert.Equal(t, liveclass.StatusEnded, ended.Status)

	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/end", token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "Live class is not live"}),
	}, rec)
}

func Test_liveClassApi_join(t *testing.T) {
	f := setupLiveClass(t)
	e := f.env

	lc := testutil.CreateLiveClass(t, e.lcRepo, "Go Q&A", f.teacher.ID, f.course.ID, liveclass.StatusScheduled, 50)
	token := getToken(t, f.student)

	// enrollment in the parent course is required
	stranger := testutil.CreateUser(t, e.usrRepo, "lurker", "lurker@test.cd", "", user.RoleStudent, true)
	req, rec := newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/join", getToken(t, stranger))
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "must be enrolled to join"}),
	}, rec)

	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/join", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p liveclass.Participant
	unmarchall(t, rec, &p)
	assert.Equal(t, liveclass.ParticipantRegistered, p.Status)

	// joining again is idempotent
	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/join", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var again liveclass.Participant
	unmarchall(t, rec, &again)
	assert.Equal(t, p.ID, again.ID)

	req, rec = newAuthRequest(http.MethodGet, "/v1/live-classes/"+lc.ID+"/participants", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var partPage struct {
		Count   int                     `json:"count"`
		Results []liveclass.Participant `json:"results"`
	}
	unmarchall(t, rec, &partPage)
	assert.Equal(t, 1, partPage.Count)
	assert.Len(t, partPage.Results, 1)

	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/leave", token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, SuccessResponse{Success: "Left the live class."}),
	}, rec)

	// leaving without a participation
	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/leave", token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "participation not found"}),
	}, rec)
}

func Test_liveClassApi_approve(t *testing.T) {
	f := setupLiveClass(t)
	e := f.env

	lc := testutil.CreateLiveClass(t, e.lcRepo, "Go Q&A", f.teacher.ID, f.course.ID, liveclass.StatusScheduled, 50)

	req, rec := newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/join", getToken(t, f.student))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p liveclass.Participant
	unmarchall(t, rec, &p)

	token := getToken(t, f.teacher)

	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/participants/"+p.ID+"/approve", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved liveclass.Participant
	unmarchall(t, rec, &approved)
	assert.Equal(t, liveclass.ParticipantApproved, approved.Status)
	assert.Equal(t, f.teacher.ID, approved.ApprovedBy)

	// unknown participant
	req, rec = newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/participants/lol/approve", token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "participation not found"}),
	}, rec)
}

func Test_liveClassApi_messages(t *testing.T) {
	f := setupLiveClass(t)
	e := f.env

	lc := testutil.CreateLiveClass(t, e.lcRepo, "Go Q&A", f.teacher.ID, f.course.ID, liveclass.StatusLive, 50)
	other := testutil.CreateUser(t, e.usrRepo, "user02", "user02@test.cd", "", user.RoleStudent, true)
	testutil.Enroll(t, e.enrRepo, other.ID, f.course.ID)

	// an empty message is refused
	req, rec := newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/messages", getToken(t, f.student),
		marchallObj(t, liveclass.NewMessage{}))
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"message": "this field is required"}),
	}, rec)

	post := func(sender user.User, text string, private bool) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/v1/live-classes/"+lc.ID+"/messages", getToken(t, sender),
			marchallObj(t, liveclass.NewMessage{Message: text, IsPrivate: private}))
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	post(f.student, "hello all", false)
	post(f.student, "private question", true)
	post(other, "another private one", true)

	// the owning teacher sees everything
	req, rec = newAuthRequest(http.MethodGet, "/v1/live-classes/"+lc.ID+"/messages", getToken(t, f.teacher))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var msgPage struct {
		Count   int                 `json:"count"`
		Results []liveclass.Message `json:"results"`
	}
	unmarchall(t, rec, &msgPage)
	assert.Equal(t, 3, msgPage.Count)

	// a student sees public messages plus their own private ones
	req, rec = newAuthRequest(http.MethodGet, "/v1/live-classes/"+lc.ID+"/messages", getToken(t, f.student))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarchall(t, rec, &msgPage)
	require.Equal(t, 2, msgPage.Count)
	for _, m := range msgPage.Results {
		if m.IsPrivate {
			assert.Equal(t, f.student.ID, m.SenderID)
		}
	}
}

func Test_liveClassApi_recordings(t *testing.T) {
	f := setupLiveClass(t)
	e := f.env

	lc := testutil.CreateLiveClass(t, e.lcRepo, "Go Q&A", f.teacher.ID, f.course.ID, liveclass.StatusEnded, 50)

	body := marchallObj(t, liveclass.NewRecording{
		LiveClassID:  lc.ID,
		Title:        "Go Q&A session",
		RecordingURL: "https://cdn.test.cd/recordings/go-qa.mp4",
	})

	// students cannot attach recordings
	req, rec := newAuthRequest(http.MethodPost, "/v1/recordings", getToken(t, f.student), body)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "permission denied"}),
	}, rec)

	req, rec = newAuthRequest(http.MethodPost, "/v1/recordings", getToken(t, f.teacher), body)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var recording liveclass.Recording
	unmarchall(t, rec, &recording)
	assert.Equal(t, lc.ID, recording.LiveClassID)

	// the enrolled student sees it
	req, rec = newAuthRequest(http.MethodGet, "/v1/recordings", getToken(t, f.student))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page struct {
		Count   int                   `json:"count"`
		Results []liveclass.Recording `json:"results"`
	}
	unmarchall(t, rec, &page)
	assert.Equal(t, 1, page.Count)

	// an unenrolled one does not
	stranger := testutil.CreateUser(t, e.usrRepo, "lurker", "lurker@test.cd", "", user.RoleStudent, true)
	req, rec = newAuthRequest(http.MethodGet, "/v1/recordings", getToken(t, stranger))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarchall(t, rec, &page)
	assert.Equal(t, 0, page.Count)

	req, rec = newAuthRequest(http.MethodDelete, "/v1/recordings/"+recording.ID, getToken(t, f.teacher))
	e.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
