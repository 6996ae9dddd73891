package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"roomload/core-go/internal/db"
	"roomload/core-go/internal/poller"
	"roomload/core-go/internal/registry"
	"roomload/core-go/internal/view"
)

func requireTestDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}
	return dsn
}

func mustDeriveDatabaseURL(t *testing.T, baseURL, dbName string) string {
	t.Helper()

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		t.Skipf("TEST_DATABASE_URL must be a URL-style DSN (e.g. postgres://...); got %q", baseURL)
	}

	u.Path = "/" + dbName
	return u.String()
}

func newTestDatabaseName() string {
	// Safe identifier (letters/digits/underscores) so we can use it without quoting.
	return fmt.Sprintf("roomload_test_%d", time.Now().UnixNano())
}

func createDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	_, err = adminConn.Exec(ctx, "CREATE DATABASE "+dbName)
	return err
}

func dropDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	if _, err := adminConn.Exec(ctx, "DROP DATABASE "+dbName+" WITH (FORCE)"); err == nil {
		return nil
	}
	_, err = adminConn.Exec(ctx, "DROP DATABASE "+dbName)
	return err
}

func migrationsDir(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", ".."))
	return filepath.Join(repoRoot, "migrations")
}

func applyMigrations(ctx context.Context, conn *pgx.Conn, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var ups []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".up.sql") {
			ups = append(ups, name)
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	return nil
}

const integrationSeed = `
INSERT INTO buildings (id, name) VALUES (1, 'Haupthaus');
INSERT INTO floors (id, building_id, name) VALUES (10, 1, 'EG'), (11, 1, '1. Stock');
INSERT INTO rooms (id, floor_id, name, capacity, is_active) VALUES
  (100, 10, 'E01', 30, TRUE),
  (101, 10, 'E02', 30, TRUE),
  (102, 10, 'E03', 30, FALSE),
  (110, 11, '1.01', 24, TRUE);
INSERT INTO access_points (id, name, connected_devices) VALUES
  (1, 'ap-eg-1', 20),
  (2, 'ap-eg-2', 20),
  (3, 'ap-1-1', 40);
INSERT INTO room_accesspoints (room_id, accesspoint_id) VALUES
  (100, 1), (100, 2), (101, 2), (102, 3), (110, 3);
`

func TestHandler_Postgres_RefreshAndServeOverlay(t *testing.T) {
	adminURL := requireTestDatabaseURL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := newTestDatabaseName()
	testDBURL := mustDeriveDatabaseURL(t, adminURL, dbName)

	if err := createDatabase(ctx, adminURL, dbName); err != nil {
		t.Fatalf("create database: %v", err)
	}
	t.Cleanup(func() {
		_ = dropDatabase(context.Background(), adminURL, dbName)
	})

	mConn, err := pgx.Connect(ctx, testDBURL)
	if err != nil {
		t.Fatalf("connect for migrations: %v", err)
	}
	if err := applyMigrations(ctx, mConn, migrationsDir(t)); err != nil {
		_ = mConn.Close(ctx)
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := mConn.Exec(ctx, integrationSeed); err != nil {
		_ = mConn.Close(ctx)
		t.Fatalf("seed topology: %v", err)
	}
	if err := mConn.Close(ctx); err != nil {
		t.Fatalf("close migration connection: %v", err)
	}

	pool, err := db.Open(ctx, testDBURL)
	if err != nil {
		t.Fatalf("open db pool: %v", err)
	}
	t.Cleanup(pool.Close)

	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}

	log := NewLogger("error")
	p := poller.New(log, pool.Queries(), reg, poller.Options{}, nil)
	h := NewHandler(log, Deps{DB: pool, Board: p.Board(), Refresher: p, Plans: reg})
	router := h.Router()

	rrNotReady := httptest.NewRecorder()
	router.ServeHTTP(rrNotReady, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rrNotReady.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before first refresh expected 503, got %d: %s", rrNotReady.Code, rrNotReady.Body.String())
	}

	rrRefresh := httptest.NewRecorder()
	router.ServeHTTP(rrRefresh, httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil))
	if rrRefresh.Code != http.StatusOK {
		t.Fatalf("refresh expected 200, got %d: %s", rrRefresh.Code, rrRefresh.Body.String())
	}

	rrReady := httptest.NewRecorder()
	router.ServeHTTP(rrReady, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rrReady.Code != http.StatusOK {
		t.Fatalf("readyz expected 200, got %d: %s", rrReady.Code, rrReady.Body.String())
	}

	rrOverlay := httptest.NewRecorder()
	router.ServeHTTP(rrOverlay, httptest.NewRequest(http.MethodGet, "/api/v1/floors/10/overlay", nil))
	if rrOverlay.Code != http.StatusOK {
		t.Fatalf("overlay expected 200, got %d: %s", rrOverlay.Code, rrOverlay.Body.String())
	}

	var overlay view.Overlay
	if err := json.NewDecoder(rrOverlay.Body).Decode(&overlay); err != nil {
		t.Fatalf("decode overlay: %v", err)
	}
	if len(overlay.Rects) != 2 {
		t.Fatalf("expected 2 placed rooms on EG, got %+v", overlay.Rects)
	}
	byRoom := map[string]view.Rect{}
	for _, r := range overlay.Rects {
		byRoom[r.Room] = r
	}
	// E01 shares ap-eg-2 with E02; each association counts in full.
	if byRoom["E01"].Occupancy != 40 || byRoom["E01"].Tier != "MEDIUM" {
		t.Fatalf("unexpected E01 %+v", byRoom["E01"])
	}
	if byRoom["E02"].Occupancy != 20 || byRoom["E02"].Tier != "LOW" {
		t.Fatalf("unexpected E02 %+v", byRoom["E02"])
	}
	if _, ok := byRoom["E03"]; ok {
		t.Fatalf("inactive room must not be drawn")
	}

	rrRooms := httptest.NewRecorder()
	router.ServeHTTP(rrRooms, httptest.NewRequest(http.MethodGet, "/api/v1/floors/11/occupancy", nil))
	if rrRooms.Code != http.StatusOK {
		t.Fatalf("occupancy expected 200, got %d: %s", rrRooms.Code, rrRooms.Body.String())
	}
	var rooms view.Rooms
	if err := json.NewDecoder(rrRooms.Body).Decode(&rooms); err != nil {
		t.Fatalf("decode rooms: %v", err)
	}
	// ap-1-1 also serves the inactive E03, which does not reduce 1.01.
	if len(rooms.Rooms) != 1 || rooms.Rooms[0].Occupancy != 40 {
		t.Fatalf("unexpected rooms on 1. Stock %+v", rooms.Rooms)
	}
}
