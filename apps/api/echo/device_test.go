package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/attsession"
)

func TestDeviceCurrentUnknownSession(t *testing.T) {
	app, _ := setup(t)

	req, rec := newRequest(http.MethodGet, "/v1/device/att-sessions/deadbeef/current")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var view attsession.DeviceView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, attsession.DeviceNoSession, view.Status)
	assert.False(t, view.HasStudent)
}

func TestDeviceMarkRejectsBadRequests(t *testing.T) {
	app, env := setup(t)
	teacher := createTeacher(t, env, "mrkalala")
	cls := createClass(t, env, teacher, 1)
	token := getToken(t, teacher)
	startSession(t, app, token, cls.ID, "2026-03-02")

	tests := []struct {
		name string
		body []byte
	}{
		{"empty body", []byte(`{}`)},
		{"garbage token", marchallObj(t, DeviceMarkRequest{AttendanceToken: "not.a.token", Status: attendance.StatusPresent})},
		{"invalid status", []byte(`{"attendance_token":"abc.def","status":"late"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/device/att-sessions/mark", tt.body)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			var res DeviceMarkResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.False(t, res.Accepted)
		})
	}
}

// A token minted for an earlier assignment must not mark a later student.
func TestDeviceMarkStaleToken(t *testing.T) {
	app, env := setup(t)
	teacher := createTeacher(t, env, "mrkalala")
	cls := createClass(t, env, teacher, 2)
	token := getToken(t, teacher)
	res := startSession(t, app, token, cls.ID, "2026-03-02")

	sessionPath := "/v1/att-sessions/" + res.SessionID
	currentPath := "/v1/device/att-sessions/" + res.SessionID + "/current"

	// assign student 1, capture token, then operator skips past them
	req, rec := newAuthRequest(http.MethodPost, sessionPath+"/assign", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req, rec = newRequest(http.MethodGet, currentPath)
	app.ServeHTTP(rec, req)
	var view attsession.DeviceView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	staleToken := view.AttendanceToken
	require.NotEmpty(t, staleToken)

	req, rec = newAuthRequest(http.MethodPost, sessionPath+"/skip", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	req, rec = newAuthRequest(http.MethodPost, sessionPath+"/assign", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	markBody := marchallObj(t, DeviceMarkRequest{AttendanceToken: staleToken, Status: attendance.StatusPresent})
	req, rec = newRequest(http.MethodPost, "/v1/device/att-sessions/mark", markBody)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var markRes DeviceMarkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &markRes))
	assert.False(t, markRes.Accepted)
	assert.Equal(t, "rejected", markRes.Status)

	// student 2 is still pending
	reqS, recS := newAuthRequest(http.MethodGet, sessionPath, token)
	app.ServeHTTP(recS, reqS)
	var status attsession.StatusView
	require.NoError(t, json.Unmarshal(recS.Body.Bytes(), &status))
	assert.Equal(t, 0, status.Present)
	assert.Equal(t, 1, status.Absent)
	assert.Equal(t, 1, status.Pending)
}
