package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/table-reservations/config"
	"github.com/yeremiapane/table-reservations/database"
	"github.com/yeremiapane/table-reservations/hub"
	"github.com/yeremiapane/table-reservations/router"
	"github.com/yeremiapane/table-reservations/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	utils.SetJWTSecret("integration-secret")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// setupTestDB migrates an in-memory sqlite database and seeds the demo floor.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, database.Seed(db))
	require.NoError(t, database.Seed(db), "seeding twice is a no-op")
	return db
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.GenerateToken(1, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func call(t *testing.T, h http.Handler, method, path, tok string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// TestEndToEndReservationFlow covers the main flow:
// 1. user cannot create, admin can
// 2. create, read with ETag and 304
// 3. conflicting create rejected, touching create accepted
// 4. limit from the env file is picked up without restart
// 5. update, delete
func TestEndToEndReservationFlow(t *testing.T) {
	db := setupTestDB(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RESERVATION_LIMIT=2\n"), 0o600))
	limits := config.NewReservationSettings(envFile, 0)
	limits.RefreshInterval = 0

	r := router.SetupRouter(db, router.Options{Limits: limits})
	admin := token(t, utils.RoleAdmin)
	user := token(t, utils.RoleUser)

	w := call(t, r, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Timestamp"))

	first := map[string]interface{}{
		"clientId":        1,
		"tableNumber":     1,
		"startTime":       "2025-03-01T18:00:00Z",
		"endTime":         "2025-03-01T22:00:00Z",
		"reservationType": "Birthday",
		"specialRequests": "Cake",
	}

	w = call(t, r, http.MethodPost, "/reservations", "", first)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = call(t, r, http.MethodPost, "/reservations", user, first)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, r, http.MethodPost, "/reservations", admin, first)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/reservations/"))

	w = call(t, r, http.MethodGet, location, user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Contains(t, w.Body.String(), `"hostName":"Anna Koval"`)

	w = call(t, r, http.MethodGet, location, user, nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	overlap := map[string]interface{}{"clientId": 2, "tableNumber": 1, "startTime": "2025-03-01T17:30:00Z", "endTime": "2025-03-01T18:30:00Z"}
	w = call(t, r, http.MethodPost, "/reservations", admin, overlap)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "table is reserved for the time specified")

	touching := map[string]interface{}{"clientId": 1, "tableNumber": 1, "startTime": "2025-03-01T17:00:00Z", "endTime": "2025-03-01T18:00:00Z"}
	w = call(t, r, http.MethodPost, "/reservations", admin, touching)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	third := map[string]interface{}{"clientId": 1, "tableNumber": 2, "startTime": "2025-03-05T12:00:00Z", "endTime": "2025-03-05T13:00:00Z"}
	w = call(t, r, http.MethodPost, "/reservations", admin, third)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Reservation limit exceeded")

	require.NoError(t, os.WriteFile(envFile, []byte("RESERVATION_LIMIT=3\n"), 0o600))
	w = call(t, r, http.MethodPost, "/reservations", admin, third)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(t, r, http.MethodGet, "/reservations?clientId=1&date=2025-03-01", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 2)

	first["specialRequests"] = "Cake and candles"
	w = call(t, r, http.MethodPut, location, admin, first)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodGet, location, user, nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, w.Code, "changed reservation gets a new ETag")

	w = call(t, r, http.MethodDelete, location, admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = call(t, r, http.MethodGet, location, user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLiveFeedReceivesReservationEvents(t *testing.T) {
	db := setupTestDB(t)
	h := hub.New()
	srv := httptest.NewServer(router.SetupRouter(db, router.Options{Hub: h}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/reservations?token=" + token(t, utils.RoleUser)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	body := map[string]interface{}{"clientId": 2, "tableNumber": 3, "startTime": "2025-03-01T18:00:00Z", "endTime": "2025-03-01T19:00:00Z"}
	w := call(t, srv.Config.Handler, http.MethodPost, "/reservations", token(t, utils.RoleAdmin), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Event string `json:"event"`
		Data  struct {
			ReservationID uint `json:"reservationId"`
			Reservation   struct {
				TableNumber int    `json:"tableNumber"`
				ClientName  string `json:"clientName"`
			} `json:"reservation"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "reservation.created", msg.Event)
	assert.Equal(t, 3, msg.Data.Reservation.TableNumber)
	assert.Equal(t, "Jane Roe", msg.Data.Reservation.ClientName)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/reservations", nil)
	assert.Error(t, err, "feed requires a token")
}
