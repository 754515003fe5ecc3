package links_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpage/internal/links"
	"linkpage/internal/testsupport"
	"linkpage/internal/users"
	"linkpage/internal/validation"
)

func decodeCreate(t *testing.T, body string) links.CreateInput {
	t.Helper()
	var input links.CreateInput
	require.NoError(t, json.Unmarshal([]byte(body), &input))
	return input
}

func TestCreate(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	t.Run("creates an active link with defaults", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		user := testsupport.CreateTestUser(db, "alice")

		link, err := links.Create(db, logger, links.CreateInput{
			UserID:   validation.NewInteger(int(user.ID)),
			Title:    validation.Some("  My Site  "),
			URL:      validation.Some(" https://example.com "),
			Position: validation.NewInteger(0),
		})
		require.NoError(t, err)

		assert.NotZero(t, link.ID)
		assert.Equal(t, user.ID, link.UserID)
		assert.Equal(t, "My Site", link.Title)
		assert.Equal(t, "https://example.com", link.URL)
		assert.Equal(t, links.DefaultLayout, link.Layout)
		assert.Equal(t, 0, link.Position)
		assert.True(t, link.IsActive)
		assert.Equal(t, int64(0), link.Clicks)
		assert.Nil(t, link.Icon)
	})

	t.Run("accepts numeric strings", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		user := testsupport.CreateTestUser(db, "bob")

		input := decodeCreate(t, `{"user_id":"`+jsonID(user.ID)+`","title":"Blog","url":"https://blog.example","position":"3","layout":"card","icon":"star"}`)
		link, err := links.Create(db, logger, input)
		require.NoError(t, err)

		assert.Equal(t, 3, link.Position)
		assert.Equal(t, "card", link.Layout)
		require.NotNil(t, link.Icon)
		assert.Equal(t, "star", *link.Icon)
	})

	t.Run("validation errors", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		user := testsupport.CreateTestUser(db, "carol")
		uid := jsonID(user.ID)

		tests := []struct {
			name string
			body string
			kind validation.Kind
			code string
		}{
			{"missing user", `{"title":"a","url":"b","position":1}`, validation.KindMissingField, "MISSING_USER_ID"},
			{"zero user", `{"user_id":0,"title":"a","url":"b","position":1}`, validation.KindMissingField, "MISSING_USER_ID"},
			{"missing title", `{"user_id":` + uid + `,"url":"b","position":1}`, validation.KindMissingField, "MISSING_TITLE"},
			{"missing url", `{"user_id":` + uid + `,"title":"a","position":1}`, validation.KindMissingField, "MISSING_URL"},
			{"missing position", `{"user_id":` + uid + `,"title":"a","url":"b"}`, validation.KindMissingField, "MISSING_POSITION"},
			{"null position", `{"user_id":` + uid + `,"title":"a","url":"b","position":null}`, validation.KindMissingField, "MISSING_POSITION"},
			{"bad user id", `{"user_id":"abc","title":"a","url":"b","position":1}`, validation.KindInvalidFormat, "INVALID_USER_ID"},
			{"bad position", `{"user_id":` + uid + `,"title":"a","url":"b","position":"first"}`, validation.KindInvalidFormat, "INVALID_POSITION"},
			{"bad layout", `{"user_id":` + uid + `,"title":"a","url":"b","position":1,"layout":"grid"}`, validation.KindInvalidFormat, "INVALID_LAYOUT"},
			{"blank title", `{"user_id":` + uid + `,"title":"   ","url":"b","position":1}`, validation.KindInvalidFormat, "EMPTY_TITLE"},
			{"blank url", `{"user_id":` + uid + `,"title":"a","url":"  ","position":1}`, validation.KindInvalidFormat, "EMPTY_URL"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				link, err := links.Create(db, logger, decodeCreate(t, tt.body))
				assert.Nil(t, link)

				verr, ok := validation.As(err)
				require.True(t, ok, "expected validation error, got %v", err)
				assert.Equal(t, tt.kind, verr.Kind)
				assert.Equal(t, tt.code, verr.Code)
			})
		}

		all, err := links.ForUser(db, user.ID)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("unknown user", func(t *testing.T) {
		testsupport.CleanAllTables(db)

		_, err := links.Create(db, logger, links.CreateInput{
			UserID:   validation.NewInteger(4242),
			Title:    validation.Some("a"),
			URL:      validation.Some("b"),
			Position: validation.NewInteger(1),
		})
		var notFound *users.UserNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestUpdate(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	logger := testsupport.GetLogger()
	user := testsupport.CreateTestUser(db, "dave")
	original := testsupport.CreateTestLink(db, user.ID, "Shop", "https://shop.example", 1)

	t.Run("updates only present fields", func(t *testing.T) {
		inactive := false
		updated, err := links.Update(db, logger, int(original.ID), links.UpdateInput{
			Title:    validation.Some(" Store "),
			Layout:   validation.Some("featured"),
			IsActive: &inactive,
		})
		require.NoError(t, err)

		assert.Equal(t, "Store", updated.Title)
		assert.Equal(t, "featured", updated.Layout)
		assert.False(t, updated.IsActive)
		assert.Equal(t, original.URL, updated.URL)
		assert.Equal(t, original.Position, updated.Position)
		assert.False(t, updated.UpdatedAt.Before(original.UpdatedAt))
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		_, err := links.Update(db, logger, int(original.ID), links.UpdateInput{Layout: validation.Some("grid")})
		verr, ok := validation.As(err)
		require.True(t, ok)
		assert.Equal(t, "INVALID_LAYOUT", verr.Code)

		_, err = links.Update(db, logger, int(original.ID), links.UpdateInput{Title: validation.Some("  ")})
		verr, ok = validation.As(err)
		require.True(t, ok)
		assert.Equal(t, "EMPTY_TITLE", verr.Code)
	})

	t.Run("clears icon with null", func(t *testing.T) {
		_, err := links.Update(db, logger, int(original.ID), links.UpdateInput{Icon: validation.Some("cart")})
		require.NoError(t, err)

		var input links.UpdateInput
		require.NoError(t, json.Unmarshal([]byte(`{"icon":null}`), &input))
		updated, err := links.Update(db, logger, int(original.ID), input)
		require.NoError(t, err)
		assert.Nil(t, updated.Icon)
	})

	t.Run("missing link", func(t *testing.T) {
		_, err := links.Update(db, logger, 99999, links.UpdateInput{Title: validation.Some("x")})
		var notFound *links.LinkNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestDelete(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	logger := testsupport.GetLogger()
	user := testsupport.CreateTestUser(db, "erin")
	link := testsupport.CreateTestLink(db, user.ID, "Music", "https://music.example", 0)
	other := testsupport.CreateTestLink(db, user.ID, "Video", "https://video.example", 1)
	testsupport.CreateLinkClick(db, link.ID, "https://twitter.com")
	testsupport.CreateLinkClick(db, link.ID, "")
	testsupport.CreateLinkClick(db, other.ID, "")

	deleted, err := links.Delete(db, logger, int(link.ID))
	require.NoError(t, err)
	assert.Equal(t, link.ID, deleted.ID)
	assert.Equal(t, "Music", deleted.Title)

	_, err = links.FindByID(db, int(link.ID))
	var notFound *links.LinkNotFoundError
	assert.ErrorAs(t, err, &notFound)

	var orphaned, remaining int64
	require.NoError(t, db.Table("link_clicks").Where("link_id = ?", link.ID).Count(&orphaned).Error)
	require.NoError(t, db.Table("link_clicks").Where("link_id = ?", other.ID).Count(&remaining).Error)
	assert.Equal(t, int64(0), orphaned)
	assert.Equal(t, int64(1), remaining)

	_, err = links.Delete(db, logger, int(link.ID))
	assert.ErrorAs(t, err, &notFound)
}

func TestParseReorderEntries(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"absent", ``, "MISSING_LINKS_ARRAY"},
		{"null", `null`, "MISSING_LINKS_ARRAY"},
		{"object", `{"id":1}`, "INVALID_LINKS_FORMAT"},
		{"string", `"1,2"`, "INVALID_LINKS_FORMAT"},
		{"empty", `[]`, "EMPTY_LINKS_ARRAY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := links.ParseReorderEntries(json.RawMessage(tt.raw))
			verr, ok := validation.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, verr.Code)
		})
	}

	entries, err := links.ParseReorderEntries(json.RawMessage(`[{"id":1,"position":0},{"id":"2","position":"1"}]`))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReorder(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	t.Run("updates positions and skips unknown ids", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		user := testsupport.CreateTestUser(db, "frank")
		a := testsupport.CreateTestLink(db, user.ID, "A", "https://a.example", 0)
		b := testsupport.CreateTestLink(db, user.ID, "B", "https://b.example", 1)

		updated, err := links.Reorder(db, logger, []links.ReorderEntry{
			{ID: validation.NewInteger(int(a.ID)), Position: validation.NewInteger(1)},
			{ID: validation.NewInteger(99999), Position: validation.NewInteger(5)},
			{ID: validation.NewInteger(int(b.ID)), Position: validation.NewInteger(0)},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, updated)

		active, err := links.ActiveForUser(db, user.ID)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, b.ID, active[0].ID)
		assert.Equal(t, a.ID, active[1].ID)
	})

	t.Run("validates every entry before writing", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		user := testsupport.CreateTestUser(db, "grace")
		a := testsupport.CreateTestLink(db, user.ID, "A", "https://a.example", 0)

		tests := []struct {
			name  string
			entry string
			code  string
		}{
			{"missing id", `{"position":2}`, "MISSING_LINK_ID"},
			{"empty id", `{"id":"","position":2}`, "MISSING_LINK_ID"},
			{"missing position", `{"id":1}`, "MISSING_LINK_POSITION"},
			{"bad id", `{"id":"x","position":2}`, "INVALID_LINK_ID"},
			{"bad position", `{"id":1,"position":"top"}`, "INVALID_LINK_POSITION"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				raw := `[{"id":` + jsonID(a.ID) + `,"position":9},` + tt.entry + `]`
				entries, err := links.ParseReorderEntries(json.RawMessage(raw))
				require.NoError(t, err)

				updated, err := links.Reorder(db, logger, entries)
				assert.Equal(t, 0, updated)
				verr, ok := validation.As(err)
				require.True(t, ok)
				assert.Equal(t, tt.code, verr.Code)

				current, err := links.FindByID(db, int(a.ID))
				require.NoError(t, err)
				assert.Equal(t, 0, current.Position)
			})
		}
	})

	t.Run("position zero is valid", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		user := testsupport.CreateTestUser(db, "heidi")
		a := testsupport.CreateTestLink(db, user.ID, "A", "https://a.example", 4)

		updated, err := links.Reorder(db, logger, []links.ReorderEntry{
			{ID: validation.NewInteger(int(a.ID)), Position: validation.NewInteger(0)},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, updated)
	})
}

func TestReorderReturnsStoreFailure(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	user := testsupport.CreateTestUser(db, "heidi")
	a := testsupport.CreateTestLink(db, user.ID, "A", "https://a.example", 0)

	require.NoError(t, db.Migrator().DropTable(&links.Link{}))

	updated, err := links.Reorder(db, logger, []links.ReorderEntry{
		{ID: validation.NewInteger(int(a.ID)), Position: validation.NewInteger(3)},
	})
	require.Error(t, err)
	assert.Zero(t, updated)

	_, isValidation := validation.As(err)
	assert.False(t, isValidation, "store failures are not client errors")
}

func TestActiveForUser(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	logger := testsupport.GetLogger()
	user := testsupport.CreateTestUser(db, "ivan")
	other := testsupport.CreateTestUser(db, "judy")

	second := testsupport.CreateTestLink(db, user.ID, "Second", "https://2.example", 2)
	first := testsupport.CreateTestLink(db, user.ID, "First", "https://1.example", 1)
	tie := testsupport.CreateTestLink(db, user.ID, "Tie", "https://tie.example", 2)
	hidden := testsupport.CreateTestLink(db, user.ID, "Hidden", "https://hidden.example", 0)
	testsupport.CreateTestLink(db, other.ID, "Other", "https://other.example", 0)

	inactive := false
	_, err := links.Update(db, logger, int(hidden.ID), links.UpdateInput{IsActive: &inactive})
	require.NoError(t, err)

	active, err := links.ActiveForUser(db, user.ID)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)
	assert.Equal(t, tie.ID, active[2].ID)

	all, err := links.ForUser(db, user.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
