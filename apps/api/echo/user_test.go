package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/user"
)

func TestUserLogin(t *testing.T) {
	app, env := setup(t)
	teacher := createTeacher(t, env, "mrkalala")

	deactivated := createTeacher(t, env, "mrsmbuyi")
	inactive := false
	_, err := env.usrSvc.Update(deactivated.ID, user.UpdateUser{IsActive: &inactive})
	require.NoError(t, err)

	tests := []httpTest{
		{name: "empty credentials", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"this field is required","password":"this field is required"}`)},
		{name: "unknown user", body: marchallObj(t, LoginRequest{Username: "ghost", Password: "L0rd@OfTheRings"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "wrong password", body: marchallObj(t, LoginRequest{Username: "mrkalala", Password: "TheHobbit"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "deactivated account", body: marchallObj(t, LoginRequest{Username: "mrsmbuyi", Password: "L0rd@OfTheRings"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("valid credentials", func(t *testing.T) {
		body := marchallObj(t, LoginRequest{Username: teacher.Username, Password: "L0rd@OfTheRings"})
		req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.NotEmpty(t, res.Token)

		// the token works on an authed endpoint
		req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+teacher.ID, res.Token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestUserTokenRefresh(t *testing.T) {
	app, env := setup(t)
	teacher := createTeacher(t, env, "mrkalala")
	token := getToken(t, teacher)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.Token)
}

func TestUserAccess(t *testing.T) {
	app, env := setup(t)
	teacher := createTeacher(t, env, "mrkalala")
	other := createTeacher(t, env, "mrsmbuyi")
	admin := createAdmin(t, env, "headmaster")

	// a teacher can retrieve themselves but not others
	req, rec := newAuthRequest(http.MethodGet, "/v1/users/"+teacher.ID, getToken(t, teacher))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+other.ID, getToken(t, teacher))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// listing is admin-only
	req, rec = newAuthRequest(http.MethodGet, "/v1/users", getToken(t, teacher))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/users", getToken(t, admin))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 3)
}

func TestUserRegisterRolePriority(t *testing.T) {
	app, env := setup(t)
	admin := createAdmin(t, env, "headmaster")

	// a principal cannot mint an owner
	body := marchallObj(t, user.NewUser{
		Name:            "Sneaky",
		Username:        "sneaky1",
		Email:           "sneaky@test.cd",
		Password:        "L0rd@OfTheRings",
		PasswordConfirm: "L0rd@OfTheRings",
		Roles:           []string{user.RoleAdminOwner},
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", getToken(t, admin), body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), errNoPermsToSetRoles)

	// a teacher is fine
	body = marchallObj(t, user.NewUser{
		Name:            "New Teacher",
		Username:        "newteach",
		Email:           "newteach@test.cd",
		Password:        "L0rd@OfTheRings",
		PasswordConfirm: "L0rd@OfTheRings",
		Roles:           []string{user.RoleTeacher},
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/users/register", getToken(t, admin), body)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
