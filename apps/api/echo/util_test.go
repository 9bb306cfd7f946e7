package echoapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/attsession"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	conf    *core.Config
	usrSvc  user.ServiceInterface
	clsSvc  class.ServiceInterface
	attSvc  attendance.ServiceInterface
	sessSvc attsession.ServiceInterface
}

func testConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Darasa",
		SecretKey:        []byte("s3cr3t"),
		DefaultFromEmail: "noreply@localhost",
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

func setup(t *testing.T) (Server, *testEnv) {
	t.Helper()

	conf := testConfig()

	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(dummydb.NewUserRepository(db), mailSvc, conf)
	clsSvc := class.NewService(dummydb.NewClassRepository(db))
	attSvc := attendance.NewService(dummydb.NewAttendanceRepository(db))
	sessSvc := attsession.NewService(clsSvc, attSvc, conf)

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         testLogger{},
		UserSvc:        usrSvc,
		ClassSvc:       clsSvc,
		AttSvc:         attSvc,
		SessionSvc:     sessSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	return app, &testEnv{
		conf:    conf,
		usrSvc:  usrSvc,
		clsSvc:  clsSvc,
		attSvc:  attSvc,
		sessSvc: sessSvc,
	}
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type testLogger struct{}

func (testLogger) Enable(bool)                  {}
func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

// seed helpers

func createUser(t *testing.T, env *testEnv, uname string, roles []string) user.User {
	t.Helper()
	usr, err := env.usrSvc.Create(user.NewUser{
		Name:            uname,
		Username:        uname,
		Email:           uname + "@test.cd",
		Password:        "L0rd@OfTheRings",
		PasswordConfirm: "L0rd@OfTheRings",
		Roles:           roles,
	})
	require.NoError(t, err)
	return usr
}

func createTeacher(t *testing.T, env *testEnv, uname string) user.User {
	return createUser(t, env, uname, []string{user.RoleTeacher})
}

func createAdmin(t *testing.T, env *testEnv, uname string) user.User {
	return createUser(t, env, uname, []string{user.RoleAdminPrincipal})
}

func createClass(t *testing.T, env *testEnv, teacher user.User, numStudents int) class.Class {
	t.Helper()
	cls, err := env.clsSvc.Create(teacher.ID, class.NewClass{Name: "Form 4 Math", Section: "A"})
	require.NoError(t, err)
	for i := 1; i <= numStudents; i++ {
		_, err = env.clsSvc.AddStudent(cls.ID, class.NewStudent{
			Name:       fmt.Sprintf("Student %02d", i),
			RollNumber: fmt.Sprintf("%02d", i),
		})
		require.NoError(t, err)
	}
	return cls
}

func mustDate(t *testing.T, v string) time.Time {
	t.Helper()
	d, err := time.Parse(core.DateLayout, v)
	require.NoError(t, err)
	return d
}

// request helpers

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
	return assert.ObjectsAreEqual(j1, j2), nil
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
