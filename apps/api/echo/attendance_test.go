package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/class"
)

func rosterOf(t *testing.T, env *testEnv, cls class.Class) []class.Student {
	t.Helper()
	students, err := env.clsSvc.Roster(cls.ID)
	require.NoError(t, err)
	return students
}

func TestAttendanceManualRecord(t *testing.T) {
	app, env := setup(t)
	teacher := createTeacher(t, env, "mrkalala")
	cls := createClass(t, env, teacher, 2)
	token := getToken(t, teacher)
	roster := rosterOf(t, env, cls)

	newRec := attendance.NewRecord{
		ClassID: cls.ID,
		Date:    "2026-03-02",
		Students: []attendance.NewStudentRecord{
			{StudentID: roster[0].ID, Status: attendance.StatusPresent},
			{StudentID: roster[1].ID, Status: attendance.StatusAbsent},
		},
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", token, marchallObj(t, newRec))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var record attendance.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Len(t, record.Students, 2)

	// same class and day again: conflict
	req, rec = newAuthRequest(http.MethodPost, "/v1/attendance", token, marchallObj(t, newRec))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// retrieve
	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance/"+record.ID, token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// query by class
	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance?class_id="+cls.ID, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []attendance.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	assert.Len(t, recs, 1)

	// delete
	req, rec = newAuthRequest(http.MethodDelete, "/v1/attendance/"+record.ID, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance/"+record.ID, token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttendanceStats(t *testing.T) {
	app, env := setup(t)
	teacher := createTeacher(t, env, "mrkalala")
	cls := createClass(t, env, teacher, 2)
	token := getToken(t, teacher)
	roster := rosterOf(t, env, cls)

	// two days: student 1 present twice, student 2 present once
	days := []struct {
		date     string
		statuses []attendance.Status
	}{
		{"2026-03-02", []attendance.Status{attendance.StatusPresent, attendance.StatusPresent}},
		{"2026-03-03", []attendance.Status{attendance.StatusPresent, attendance.StatusAbsent}},
	}
	for _, day := range days {
		_, err := env.attSvc.Save(cls.ID, teacher.ID, mustDate(t, day.date), []attendance.StudentRecord{
			{StudentID: roster[0].ID, Status: day.statuses[0]},
			{StudentID: roster[1].ID, Status: day.statuses[1]},
		})
		require.NoError(t, err)
	}

	req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/stats?class_id="+cls.ID, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stats attendance.ClassStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Sessions)
	require.Len(t, stats.Students, 2)

	byID := make(map[string]attendance.StudentStats, 2)
	for _, s := range stats.Students {
		byID[s.StudentID] = s
	}
	assert.Equal(t, 1.0, byID[roster[0].ID].Rate)
	assert.Equal(t, 0.5, byID[roster[1].ID].Rate)
}

func TestAttendanceRequiresTeacherRole(t *testing.T) {
	app, env := setup(t)
	teacher := createTeacher(t, env, "mrkalala")
	cls := createClass(t, env, teacher, 1)

	// a user with no roles is refused
	nobody := createUser(t, env, "nobody", nil)
	req, rec := newAuthRequest(http.MethodGet, "/v1/attendance?class_id="+cls.ID, getToken(t, nobody))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// no token at all
	tt := httpTest{
		method: http.MethodGet, path: "/v1/attendance?class_id=" + cls.ID,
		wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
	}
	req, rec = newRequest(tt.method, tt.path)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}
