package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/SvBorde/ResumeBooster/internal/database"
	"github.com/SvBorde/ResumeBooster/internal/llm"
)

// newChatServer fakes the chat-completions endpoint, returning the given
// string as the single choice's content.
func newChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode chat response: %v", err)
		}
	}))
}

func newTestResumeHandler(t *testing.T, llmURL string) *ResumeHandler {
	t.Helper()
	client := llm.NewClient(llm.Config{APIKey: "test-key", APIURL: llmURL, Model: "mistral-medium"})
	return NewResumeHandler(newTestDB(t), client, nil, "")
}

func TestUpload_CreatesOwnedResume(t *testing.T) {
	handler := newTestResumeHandler(t, "http://unused.invalid")
	user := seedUser(t, handler.db, "jane", "jane@example.com")

	c, w := newJSONContext(t, http.MethodPost, "/api/resume/upload", map[string]string{
		"html_content": "<html><body><h1>Jane Doe</h1></body></html>",
	})
	c.Set("userID", user.ID)
	handler.Upload(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}

	body := decodeJSONBody(t, w)
	id, ok := body["id"].(float64)
	if !ok || id == 0 {
		t.Fatalf("expected resume id in response, got %v", body)
	}

	var record database.Resume
	if err := handler.db.First(&record, uint(id)).Error; err != nil {
		t.Fatalf("load stored resume: %v", err)
	}
	if record.UserID != user.ID {
		t.Fatalf("resume owned by %d, want %d", record.UserID, user.ID)
	}
}

func TestUpload_RejectsInvalidContent(t *testing.T) {
	handler := newTestResumeHandler(t, "http://unused.invalid")
	user := seedUser(t, handler.db, "jane", "jane@example.com")

	cases := []struct {
		name     string
		content  string
		wantCode int
	}{
		{"empty", "", http.StatusBadRequest},
		{"script tag", "<html><script>alert(1)</script></html>", http.StatusBadRequest},
		{"javascript uri", `<html><a href="javascript:x()">x</a></html>`, http.StatusBadRequest},
		{"no document root", "just some text", http.StatusBadRequest},
		{"oversized", "<html>" + strings.Repeat("a", 16*1024*1024) + "</html>", http.StatusRequestEntityTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newJSONContext(t, http.MethodPost, "/api/resume/upload", map[string]string{
				"html_content": tc.content,
			})
			c.Set("userID", user.ID)
			handler.Upload(c)

			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, w.Code)
			}

			var count int64
			if err := handler.db.Model(&database.Resume{}).Count(&count).Error; err != nil {
				t.Fatalf("count resumes: %v", err)
			}
			if count != 0 {
				t.Fatalf("rejected upload must not store a resume")
			}
		})
	}
}

func TestAnalyze_ResumeNotFound(t *testing.T) {
	handler := newTestResumeHandler(t, "http://unused.invalid")
	user := seedUser(t, handler.db, "jane", "jane@example.com")

	c, w := newJSONContext(t, http.MethodPost, "/api/resume/analyze", map[string]any{
		"resume_id":       999,
		"job_description": "a job",
	})
	c.Set("userID", user.ID)
	handler.Analyze(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAnalyze_OwnershipEnforced(t *testing.T) {
	handler := newTestResumeHandler(t, "http://unused.invalid")
	owner := seedUser(t, handler.db, "jane", "jane@example.com")
	other := seedUser(t, handler.db, "john", "john@example.com")
	record := seedResume(t, handler.db, owner.ID, "<html><body>resume</body></html>")

	c, w := newJSONContext(t, http.MethodPost, "/api/resume/analyze", map[string]any{
		"resume_id":       record.ID,
		"job_description": "a perfectly valid job description",
	})
	c.Set("userID", other.ID)
	handler.Analyze(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAnalyze_JobDescriptionLimits(t *testing.T) {
	server := newChatServer(t, `{"match_percentage":70,"matched_skills":[],"missing_skills":[]}`)
	defer server.Close()

	handler := newTestResumeHandler(t, server.URL)
	user := seedUser(t, handler.db, "jane", "jane@example.com")
	record := seedResume(t, handler.db, user.ID, "<html><body>resume</body></html>")

	cases := []struct {
		name     string
		desc     string
		wantCode int
	}{
		{"empty", "", http.StatusBadRequest},
		{"at limit", strings.Repeat("j", 50000), http.StatusOK},
		{"over limit", strings.Repeat("j", 50001), http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newJSONContext(t, http.MethodPost, "/api/resume/analyze", map[string]any{
				"resume_id":       record.ID,
				"job_description": tc.desc,
			})
			c.Set("userID", user.ID)
			handler.Analyze(c)

			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d body=%s", tc.wantCode, w.Code, w.Body.String())
			}
		})
	}
}

func TestAnalyze_PersistsAndReturnsResult(t *testing.T) {
	server := newChatServer(t, `{"match_percentage":82,"matched_skills":["Python"],"missing_skills":["Rust"]}`)
	defer server.Close()

	handler := newTestResumeHandler(t, server.URL)
	user := seedUser(t, handler.db, "jane", "jane@example.com")
	record := seedResume(t, handler.db, user.ID, "<html><body>resume</body></html>")

	c, w := newJSONContext(t, http.MethodPost, "/api/resume/analyze", map[string]any{
		"resume_id":       record.ID,
		"job_description": "a go job",
	})
	c.Set("userID", user.ID)
	handler.Analyze(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	body := decodeJSONBody(t, w)
	if body["match_percentage"] != 82.0 {
		t.Fatalf("expected match_percentage 82 in response, got %v", body["match_percentage"])
	}

	var stored database.JobAnalysis
	if err := handler.db.Where("resume_id = ?", record.ID).First(&stored).Error; err != nil {
		t.Fatalf("load stored analysis: %v", err)
	}
	if stored.MatchPercentage != 82.0 {
		t.Fatalf("expected stored match percentage 82, got %v", stored.MatchPercentage)
	}
	if stored.JobDescription != "a go job" {
		t.Fatalf("unexpected stored job description %q", stored.JobDescription)
	}

	var matched []string
	if err := json.Unmarshal(stored.MatchedSkills, &matched); err != nil {
		t.Fatalf("decode stored matched skills: %v", err)
	}
	if !reflect.DeepEqual(matched, []string{"Python"}) {
		t.Fatalf("unexpected stored matched skills %v", matched)
	}
}

func TestAnalyze_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	handler := newTestResumeHandler(t, server.URL)
	user := seedUser(t, handler.db, "jane", "jane@example.com")
	record := seedResume(t, handler.db, user.ID, "<html><body>resume</body></html>")

	c, w := newJSONContext(t, http.MethodPost, "/api/resume/analyze", map[string]any{
		"resume_id":       record.ID,
		"job_description": "a go job",
	})
	c.Set("userID", user.ID)
	handler.Analyze(c)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	var count int64
	if err := handler.db.Model(&database.JobAnalysis{}).Count(&count).Error; err != nil {
		t.Fatalf("count analyses: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed analysis must not be persisted")
	}
}

func TestEnhance_OverwritesContent(t *testing.T) {
	enhanced := "<html><body><h1>Jane Doe</h1><p>Now with Go</p></body></html>"
	payload, err := json.Marshal(map[string]any{
		"enhanced_content": enhanced,
		"changes_made":     []string{"added Go to skills section"},
		"html_preview":     enhanced,
	})
	if err != nil {
		t.Fatalf("marshal llm payload: %v", err)
	}
	server := newChatServer(t, string(payload))
	defer server.Close()

	handler := newTestResumeHandler(t, server.URL)
	user := seedUser(t, handler.db, "jane", "jane@example.com")
	record := seedResume(t, handler.db, user.ID, "<html><body>old content</body></html>")

	c, w := newJSONContext(t, http.MethodPost, "/api/resume/enhance", map[string]any{
		"resume_id":       record.ID,
		"selected_skills": []string{"Go"},
	})
	c.Set("userID", user.ID)
	handler.Enhance(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	body := decodeJSONBody(t, w)
	if body["enhanced_content"] != enhanced {
		t.Fatalf("expected enhanced content in response, got %v", body)
	}

	var reloaded database.Resume
	if err := handler.db.First(&reloaded, record.ID).Error; err != nil {
		t.Fatalf("reload resume: %v", err)
	}
	if reloaded.Content != enhanced {
		t.Fatalf("resume content not overwritten, got %q", reloaded.Content)
	}
}

func TestEnhance_UnsafeResultDoesNotMutate(t *testing.T) {
	payload, err := json.Marshal(map[string]any{
		"enhanced_content": "<html><body><script>steal()</script></body></html>",
	})
	if err != nil {
		t.Fatalf("marshal llm payload: %v", err)
	}
	server := newChatServer(t, string(payload))
	defer server.Close()

	handler := newTestResumeHandler(t, server.URL)
	user := seedUser(t, handler.db, "jane", "jane@example.com")
	original := "<html><body>old content</body></html>"
	record := seedResume(t, handler.db, user.ID, original)

	c, w := newJSONContext(t, http.MethodPost, "/api/resume/enhance", map[string]any{
		"resume_id":       record.ID,
		"selected_skills": []string{"Go"},
	})
	c.Set("userID", user.ID)
	handler.Enhance(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.Resume
	if err := handler.db.First(&reloaded, record.ID).Error; err != nil {
		t.Fatalf("reload resume: %v", err)
	}
	if reloaded.Content != original {
		t.Fatalf("resume must not be mutated on unsafe enhancement, got %q", reloaded.Content)
	}
}

func TestEnhance_SkillListLimits(t *testing.T) {
	handler := newTestResumeHandler(t, "http://unused.invalid")
	user := seedUser(t, handler.db, "jane", "jane@example.com")
	record := seedResume(t, handler.db, user.ID, "<html><body>resume</body></html>")

	tooMany := make([]string, 21)
	for i := range tooMany {
		tooMany[i] = "skill"
	}

	cases := []struct {
		name   string
		skills []string
	}{
		{"empty", []string{}},
		{"too many", tooMany},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newJSONContext(t, http.MethodPost, "/api/resume/enhance", map[string]any{
				"resume_id":       record.ID,
				"selected_skills": tc.skills,
			})
			c.Set("userID", user.ID)
			handler.Enhance(c)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestEnhance_OwnershipEnforced(t *testing.T) {
	handler := newTestResumeHandler(t, "http://unused.invalid")
	owner := seedUser(t, handler.db, "jane", "jane@example.com")
	other := seedUser(t, handler.db, "john", "john@example.com")
	record := seedResume(t, handler.db, owner.ID, "<html><body>resume</body></html>")

	c, w := newJSONContext(t, http.MethodPost, "/api/resume/enhance", map[string]any{
		"resume_id":       record.ID,
		"selected_skills": []string{"Go"},
	})
	c.Set("userID", other.ID)
	handler.Enhance(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
