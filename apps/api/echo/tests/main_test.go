package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/elimu-cd/elimu/apps/api/echo"
	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/enrollment"
	"github.com/elimu-cd/elimu/core/liveclass"
	"github.com/elimu-cd/elimu/core/material"
	"github.com/elimu-cd/elimu/core/rating"
	"github.com/elimu-cd/elimu/core/user"
	emailsvc "github.com/elimu-cd/elimu/services/email"
	logsvc "github.com/elimu-cd/elimu/services/logger"
	inmemdb "github.com/elimu-cd/elimu/storage/database/inmem"
	"github.com/elimu-cd/elimu/storage/files"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	app Server

	db      *inmemdb.DB
	usrRepo user.Repository
	catRepo catalog.Repository
	enrRepo enrollment.Repository
	lcRepo  liveclass.Repository
}

func setup(t *testing.T) *env {
	t.Helper()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	catRepo := inmemdb.NewCatalogRepository(db)
	enrRepo := inmemdb.NewEnrollmentRepository(db)
	lcRepo := inmemdb.NewLiveClassRepository(db)

	store, err := files.NewLocal(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("files.NewLocal(): %v", err)
	}
	logger := logsvc.NewConsoleLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock()
	enrSvc := enrollment.NewService(enrRepo)

	// set up server
	app := NewServer(
		&Options{
			DisableReqLogs: true,
			Logger:         logger,
			UserSvc:        user.NewService(usrRepo, mailSvc, logger),
			CatalogSvc:     catalog.NewService(catRepo),
			EnrollmentSvc:  enrSvc,
			RatingSvc:      rating.NewService(inmemdb.NewRatingRepository(db), enrSvc),
			LiveClassSvc:   liveclass.NewService(lcRepo, enrSvc),
			MaterialSvc:    material.NewService(inmemdb.NewMaterialRepository(db), store, enrSvc, logger),
		},
	)
	return &env{app: app, db: db, usrRepo: usrRepo, catRepo: catRepo, enrRepo: enrRepo, lcRepo: lcRepo}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchall(): %v; body %v", err, rec.Body.String())
	}
}
