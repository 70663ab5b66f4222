package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/elimu-cd/elimu/apps/api/echo"
	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/enrollment"
	"github.com/elimu-cd/elimu/core/rating"
	"github.com/elimu-cd/elimu/core/user"
	testutil "github.com/elimu-cd/elimu/tests"
)

type pagedCourses struct {
	Count   int              `json:"count"`
	Results []catalog.Course `json:"results"`
}

func Test_catalogApi_categories(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "prof", "prof@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, e.usrRepo, "hero", "hero@test.cd", "", user.RoleStudent, true)
	cat := testutil.CreateCategory(t, e.catRepo, "Programming")

	studentToken := getToken(t, student)
	teacherToken := getToken(t, teacher)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/categories", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Get all", method: http.MethodGet, path: "/v1/categories", token: studentToken,
			wantData: marchallObj(t, PaginatedResponse{Count: 1, Results: []catalog.Category{cat}}),
		},
		{name: "Retrieve", method: http.MethodGet, path: "/v1/categories/" + cat.ID, token: studentToken, wantData: marchallObj(t, cat)},
		{
			name: "Retrieve unknown", method: http.MethodGet, path: "/v1/categories/lol", token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "category not found"}),
		},
		{
			name: "Create requires teacher or admin", method: http.MethodPost, path: "/v1/categories", token: studentToken,
			body: marchallObj(t, catalog.NewCategory{Name: "Design"}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Create requires a name", method: http.MethodPost, path: "/v1/categories", token: teacherToken,
			body: marchallObj(t, catalog.NewCategory{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name: "Duplicate name", method: http.MethodPost, path: "/v1/categories", token: teacherToken,
			body: marchallObj(t, catalog.NewCategory{Name: "Programming"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "a category with this name already exists"}),
		},
		{
			name: "Delete requires teacher or admin", method: http.MethodDelete, path: "/v1/categories/" + cat.ID, token: studentToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
	}
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_catalogApi_categoryCRUD(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "prof", "prof@test.cd", "", user.RoleTeacher, true)
	token := getToken(t, teacher)

	req, rec := newAuthRequest(http.MethodPost, "/v1/categories", token, marchallObj(t, catalog.NewCategory{Name: "Design"}))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cat catalog.Category
	unmarchall(t, rec, &cat)
	assert.Equal(t, "Design", cat.Name)
	assert.NotEmpty(t, cat.ID)

	req, rec = newAuthRequest(http.MethodPut, "/v1/categories/"+cat.ID, token, marchallObj(t, catalog.UpdateCategory{Name: "UI Design"}))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarchall(t, rec, &cat)
	assert.Equal(t, "UI Design", cat.Name)

	req, rec = newAuthRequest(http.MethodDelete, "/v1/categories/"+cat.ID, token)
	e.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/categories/"+cat.ID, token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "category not found"}),
	}, rec)
}

func Test_catalogApi_courseCreate(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "prof", "prof@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, e.usrRepo, "hero", "hero@test.cd", "", user.RoleStudent, true)
	cat := testutil.CreateCategory(t, e.catRepo, "Programming")

	// students cannot create courses
	req, rec := newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, student))
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "permission denied"}),
	}, rec)

	// required fields
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, teacher), marchallObj(t, catalog.NewCourse{}))
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{
			"title":             "this field is required",
			"description":       "this field is required",
			"short_description": "this field is required",
			"category_id":       "this field is required",
		}),
	}, rec)

	body := marchallObj(t, catalog.NewCourse{
		Title:            "Go for Beginners",
		Description:      "An introduction to Go",
		ShortDescription: "Learn Go",
		CategoryID:       cat.ID,
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, teacher), body)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var course catalog.Course
	unmarchall(t, rec, &course)
	assert.Equal(t, catalog.StatusDraft, course.Status)
	assert.Equal(t, teacher.ID, course.TeacherID)
	assert.Equal(t, catalog.DifficultyBeginner, course.Difficulty) // defaulted
}

func Test_catalogApi_courseQuery(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "prof", "prof@test.cd", "", user.RoleTeacher, true)
	other := testutil.CreateUser(t, e.usrRepo, "otherprof", "otherprof@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, e.usrRepo, "hero", "hero@test.cd", "", user.RoleStudent, true)
	cat := testutil.CreateCategory(t, e.catRepo, "Programming")

	draft := testutil.CreateCourse(t, e.catRepo, "Draft Course", teacher.ID, cat.ID, catalog.StatusDraft, 50)
	published := testutil.CreateCourse(t, e.catRepo, "Published Course", teacher.ID, cat.ID, catalog.StatusPublished, 50)
	testutil.CreateCourse(t, e.catRepo, "Other Course", other.ID, cat.ID, catalog.StatusPublished, 50)

	// a student sees every published course
	req, rec := newAuthRequest(http.MethodGet, "/v1/courses", getToken(t, student))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page pagedCourses
	unmarchall(t, rec, &page)
	assert.Equal(t, 2, page.Count)
	for _, c := range page.Results {
		assert.Equal(t, catalog.StatusPublished, c.Status)
	}

	// a teacher sees all of their own courses and nobody else's
	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/teacher", getToken(t, teacher))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarchall(t, rec, &page)
	assert.Equal(t, 2, page.Count)
	for _, c := range page.Results {
		assert.Equal(t, teacher.ID, c.TeacherID)
	}

	// a draft is indistinguishable from a missing course for a student
	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+draft.ID, getToken(t, student))
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "course not found"}),
	}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+published.ID, getToken(t, student))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var course catalog.Course
	unmarchall(t, rec, &course)
	assert.Equal(t, published.ID, course.ID)
}

func Test_catalogApi_courseUpdate(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "prof", "prof@test.cd", "", user.RoleTeacher, true)
	other := testutil.CreateUser(t, e.usrRepo, "otherprof", "otherprof@test.cd", "", user.RoleTeacher, true)
	cat := testutil.CreateCategory(t, e.catRepo, "Programming")
	course := testutil.CreateCourse(t, e.catRepo, "Go for Beginners", teacher.ID, cat.ID, catalog.StatusDraft, 50)

	// only the owner may modify
	body := marchallObj(t, catalog.UpdateCourse{Title: "Hijacked"})
	req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+course.ID, getToken(t, other), body)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "only the owning teacher may modify a course"}),
	}, rec)

	// publishing stamps published_at
	body = marchallObj(t, catalog.UpdateCourse{Status: catalog.StatusPublished})
	req, rec = newAuthRequest(http.MethodPut, "/v1/courses/"+course.ID, getToken(t, teacher), body)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated catalog.Course
	unmarchall(t, rec, &updated)
	assert.Equal(t, catalog.StatusPublished, updated.Status)
	assert.False(t, updated.PublishedAt.IsZero())

	// published courses cannot go back to draft
	body = marchallObj(t, catalog.UpdateCourse{Status: catalog.StatusDraft})
	req, rec = newAuthRequest(http.MethodPut, "/v1/courses/"+course.ID, getToken(t, teacher), body)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"status": "cannot transition from published to draft"}),
	}, rec)

	// owner delete
	req, rec = newAuthRequest(http.MethodDelete, "/v1/courses/"+course.ID, getToken(t, teacher))
	e.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_catalogApi_enrollment(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "prof", "prof@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, e.usrRepo, "hero", "hero@test.cd", "", user.RoleStudent, true)
	cat := testutil.CreateCategory(t, e.catRepo, "Programming")
	course := testutil.CreateCourse(t, e.catRepo, "Go for Beginners", teacher.ID, cat.ID, catalog.StatusPublished, 50)
	draft := testutil.CreateCourse(t, e.catRepo, "Draft Course", teacher.ID, cat.ID, catalog.StatusDraft, 50)

	token := getToken(t, student)

	req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+course.ID+"/enroll", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var enr enrollment.Enrollment
	unmarchall(t, rec, &enr)
	assert.True(t, enr.IsActive)
	assert.Equal(t, course.ID, enr.CourseID)

	// double enrollment
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses/"+course.ID+"/enroll", token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "Already enrolled"}),
	}, rec)

	// unpublished courses cannot be enrolled into
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses/"+draft.ID+"/enroll", token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "course not found"}),
	}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/enrollments", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var enrPage struct {
		Count   int                     `json:"count"`
		Results []enrollment.Enrollment `json:"results"`
	}
	unmarchall(t, rec, &enrPage)
	assert.Equal(t, 1, enrPage.Count)
	require.Len(t, enrPage.Results, 1)
	assert.Equal(t, enr.ID, enrPage.Results[0].ID)

	req, rec = newAuthRequest(http.MethodPost, "/v1/courses/"+course.ID+"/unenroll", token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, SuccessResponse{Success: "Successfully unenrolled."}),
	}, rec)

	// unenrolling twice
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses/"+course.ID+"/unenroll", token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "enrollment not found"}),
	}, rec)
}

func Test_catalogApi_ratings(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "prof", "prof@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, e.usrRepo, "hero", "hero@test.cd", "", user.RoleStudent, true)
	cat := testutil.CreateCategory(t, e.catRepo, "Programming")
	course := testutil.CreateCourse(t, e.catRepo, "Go for Beginners", teacher.ID, cat.ID, catalog.StatusPublished, 50)

	token := getToken(t, student)
	body := marchallObj(t, rating.NewRating{Rating: 5, Review: "Great course"})

	// unknown course
	req, rec := newAuthRequest(http.MethodPost, "/v1/courses/lol/rate", token, body)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "course not found"}),
	}, rec)

	// not enrolled
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses/"+course.ID+"/rate", token, body)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "Must be enrolled to rate"}),
	}, rec)

	testutil.Enroll(t, e.enrRepo, student.ID, course.ID)

	// first rating creates
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses/"+course.ID+"/rate", token, body)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rtg rating.Rating
	unmarchall(t, rec, &rtg)
	assert.Equal(t, 5, rtg.Rating)

	// rating again updates in place
	body = marchallObj(t, rating.NewRating{Rating: 4, Review: "Still good"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses/"+course.ID+"/rate", token, body)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var again rating.Rating
	unmarchall(t, rec, &again)
	assert.Equal(t, rtg.ID, again.ID)
	assert.Equal(t, 4, again.Rating)

	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+course.ID+"/ratings", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rtgPage struct {
		Count   int             `json:"count"`
		Results []rating.Rating `json:"results"`
	}
	unmarchall(t, rec, &rtgPage)
	assert.Equal(t, 1, rtgPage.Count)
	assert.Len(t, rtgPage.Results, 1)

	// the 404 gate on a missing course
	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/lol/ratings", token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "course not found"}),
	}, rec)
}
