package testsupport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linkpage/internal"
	"linkpage/internal/config"
	"linkpage/internal/database"
	"linkpage/internal/events"
	"linkpage/internal/links"
	"linkpage/internal/users"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a test database with every model migrated.
// Uses a named in-memory database with cache=shared so multiple connections
// see the same data. Calls within the same root test return the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Setenv("LINKPAGE_ENV", config.Test)
	config.Reset()
	t.Cleanup(config.Reset)

	cfg := config.GetConfig()
	// SAFETY CHECK: Ensure we're in test environment
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set LINKPAGE_ENV=test", cfg.Environment)
	}

	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	if len(tableNames) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CreateTestUser creates a user, or returns the existing one with that username
func CreateTestUser(db *gorm.DB, username string) users.User {
	var user users.User
	if db.Where("username = ?", username).First(&user).Error == nil {
		return user
	}

	now := time.Now().UTC()
	user = users.User{
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	db.Create(&user)
	return user
}

// CreateTestLink creates an active link with no clicks
func CreateTestLink(db *gorm.DB, userID uint, title, url string, position int) links.Link {
	now := time.Now().UTC()
	link := links.Link{
		UserID:    userID,
		Title:     title,
		URL:       url,
		Layout:    links.DefaultLayout,
		Position:  position,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	db.Create(&link)
	return link
}

// CreateProfileView inserts view as given; a zero ViewedAt becomes now
func CreateProfileView(db *gorm.DB, view events.ProfileView) events.ProfileView {
	if view.ViewedAt.IsZero() {
		view.ViewedAt = time.Now()
	}
	view.ViewedAt = view.ViewedAt.UTC()
	db.Create(&view)
	return view
}

// CreateLinkClick records a click now and bumps the link counter
func CreateLinkClick(db *gorm.DB, linkID uint, referrer string) events.LinkClick {
	click := CreateLinkClickAt(db, linkID, time.Now())
	if referrer != "" {
		db.Model(&click).Update("referrer", referrer)
		click.Referrer = &referrer
	}
	return click
}

// CreateLinkClickAt records a click at clickedAt and bumps the link counter
func CreateLinkClickAt(db *gorm.DB, linkID uint, clickedAt time.Time) events.LinkClick {
	click := events.LinkClick{LinkID: linkID, ClickedAt: clickedAt.UTC()}
	db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&click).Error; err != nil {
			return err
		}
		return tx.Model(&links.Link{}).Where("id = ?", linkID).
			Update("clicks", gorm.Expr("clicks + ?", 1)).Error
	})
	return click
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	srv := NewTestServer(t, db)
	internal.MountAppRoutes(srv)
	return srv.App()
}

// NewTestServer creates a test server backed by db with no routes mounted
func NewTestServer(t *testing.T, db *gorm.DB) *cartridge.Server {
	t.Helper()

	t.Setenv("LINKPAGE_ENV", config.Test)
	config.Reset()
	t.Cleanup(config.Reset)

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager
	cfg.StaticDirectory = appConfig.PublicDirectory
	cfg.StaticPrefix = appConfig.PublicAssetsUrlPrefix
	cfg.TemplatesDirectory = appConfig.PublicDirectory
	// API callers include server-side renderers that send no Sec-Fetch-Site
	cfg.EnableSecFetchSite = false

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)
	return srv
}

// DoJSON sends a request with an optional JSON body and decodes the JSON
// response into a generic map. It returns the status code and the map.
func DoJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 Test Browser")

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	result := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		require.NoErrorf(t, json.Unmarshal(raw, &result), "response is not a JSON object: %s", string(raw))
	}
	return resp.StatusCode, result
}
