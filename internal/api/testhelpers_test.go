package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/SvBorde/ResumeBooster/internal/auth"
	"github.com/SvBorde/ResumeBooster/internal/database"
)

// fakeSessionStore keeps sessions in a map so handler tests can assert on
// session side effects without Redis.
type fakeSessionStore struct {
	sessions map[string]uint
	next     int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]uint{}}
}

func (s *fakeSessionStore) Create(_ context.Context, userID uint) (string, error) {
	s.next++
	token := fmt.Sprintf("token-%d", s.next)
	s.sessions[token] = userID
	return token, nil
}

func (s *fakeSessionStore) Resolve(_ context.Context, token string) (uint, error) {
	userID, ok := s.sessions[token]
	if !ok {
		return 0, auth.ErrSessionNotFound
	}
	return userID, nil
}

func (s *fakeSessionStore) Destroy(_ context.Context, token string) error {
	delete(s.sessions, token)
	return nil
}

func (s *fakeSessionStore) TTL() time.Duration { return time.Hour }

var _ auth.SessionStore = (*fakeSessionStore)(nil)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Resume{}, &database.JobAnalysis{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newTestRedis returns a client pointed at a closed port; rate-limit paths
// treat Redis errors as non-fatal, which is what these tests rely on.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
}

func newJSONContext(t *testing.T, method, target string, payload any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func seedUser(t *testing.T, db *gorm.DB, username, email string) database.User {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse-battery")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := database.User{Username: username, Email: email, PasswordHash: hash}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedResume(t *testing.T, db *gorm.DB, userID uint, content string) database.Resume {
	t.Helper()
	record := database.Resume{UserID: userID, Content: content}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	return record
}

func decodeJSONBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body %q: %v", w.Body.String(), err)
	}
	return body
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "session_id" {
			return cookie
		}
	}
	return nil
}
