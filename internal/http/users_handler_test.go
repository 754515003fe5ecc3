package http_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpage/internal/testsupport"
)

func TestUserCreateAction(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	app := testsupport.CreateMinimalTestApp(t, db)

	status, body := testsupport.DoJSON(t, app, http.MethodPost, "/api/users", map[string]any{
		"username": "  Alice_01 ",
		"name":     "Alice",
		"bio":      "Hello there",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "alice_01", body["username"])
	assert.Equal(t, "Alice", body["name"])
	assert.Equal(t, "Hello there", body["bio"])
	assert.Nil(t, body["profileImageUrl"])
	assert.NotZero(t, body["id"])

	t.Run("duplicate username conflicts", func(t *testing.T) {
		status, body := testsupport.DoJSON(t, app, http.MethodPost, "/api/users", map[string]any{"username": "ALICE_01"})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "USERNAME_EXISTS", body["code"])
		assert.Equal(t, "CONFLICT", body["kind"])
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name string
			body any
			code string
			kind string
		}{
			{"missing username", map[string]any{"name": "x"}, "MISSING_USERNAME", "MISSING_FIELD"},
			{"blank username", map[string]any{"username": "   "}, "MISSING_USERNAME", "MISSING_FIELD"},
			{"too short", map[string]any{"username": "ab"}, "USERNAME_TOO_SHORT", "INVALID_FORMAT"},
			{"bad characters", map[string]any{"username": "bad name!"}, "INVALID_USERNAME_FORMAT", "INVALID_FORMAT"},
			{"malformed json", `{"username": `, "INVALID_JSON", "INVALID_FORMAT"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				status, body := testsupport.DoJSON(t, app, http.MethodPost, "/api/users", tt.body)
				assert.Equal(t, http.StatusBadRequest, status)
				assert.Equal(t, tt.code, body["code"])
				assert.Equal(t, tt.kind, body["kind"])
				assert.NotEmpty(t, body["error"])
			})
		}
	})
}

func TestUserShowAction(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	app := testsupport.CreateMinimalTestApp(t, db)

	user := testsupport.CreateTestUser(db, "bob")
	testsupport.CreateTestLink(db, user.ID, "Second", "https://two.example", 2)
	testsupport.CreateTestLink(db, user.ID, "First", "https://one.example", 1)
	hidden := testsupport.CreateTestLink(db, user.ID, "Hidden", "https://hidden.example", 0)
	require.NoError(t, db.Model(&hidden).Update("is_active", false).Error)

	status, body := testsupport.DoJSON(t, app, http.MethodGet, "/api/users/BOB", nil)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "bob", body["username"])
	assert.Nil(t, body["theme"])

	linksRaw, ok := body["links"].([]any)
	require.True(t, ok)
	require.Len(t, linksRaw, 2)
	assert.Equal(t, "First", linksRaw[0].(map[string]any)["title"])
	assert.Equal(t, "Second", linksRaw[1].(map[string]any)["title"])

	t.Run("unknown user", func(t *testing.T) {
		status, body := testsupport.DoJSON(t, app, http.MethodGet, "/api/users/nobody", nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "USER_NOT_FOUND", body["code"])
		assert.Equal(t, "NOT_FOUND", body["kind"])
	})
}

func TestUserUpdateAction(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	app := testsupport.CreateMinimalTestApp(t, db)

	status, _ := testsupport.DoJSON(t, app, http.MethodPost, "/api/users", map[string]any{
		"username": "carol",
		"name":     "Carol",
		"bio":      "Original bio",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := testsupport.DoJSON(t, app, http.MethodPost, "/api/users/carol", map[string]any{
		"bio":               nil,
		"profile_image_url": "https://img.example/carol.png",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Carol", body["name"], "absent fields are untouched")
	assert.Nil(t, body["bio"], "null clears the field")
	assert.Equal(t, "https://img.example/carol.png", body["profileImageUrl"])

	status, body = testsupport.DoJSON(t, app, http.MethodPost, "/api/users/nobody", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "USER_NOT_FOUND", body["code"])
}
