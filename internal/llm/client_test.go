package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

// newChatServer returns a fake chat-completions endpoint whose single choice
// carries the given content string.
func newChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode chat request: %v", err)
		}
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %q", req.ResponseFormat.Type)
		}
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

func newTestClient(url string) *Client {
	return NewClient(Config{
		APIKey: "test-key",
		APIURL: url,
		Model:  "mistral-medium",
	})
}

func TestAnalyzeJobDescription_PlainShape(t *testing.T) {
	server := newChatServer(t, `{"match_percentage":82,"matched_skills":["Python"],"missing_skills":["Rust"]}`)
	defer server.Close()

	analysis, err := newTestClient(server.URL).AnalyzeJobDescription(context.Background(), "<html>resume</html>", "job")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if analysis.MatchPercentage != 82.0 {
		t.Fatalf("expected match percentage 82, got %v", analysis.MatchPercentage)
	}
	if !reflect.DeepEqual(analysis.MatchedSkills, []string{"Python"}) {
		t.Fatalf("unexpected matched skills: %v", analysis.MatchedSkills)
	}
	if !reflect.DeepEqual(analysis.MissingSkills, []string{"Rust"}) {
		t.Fatalf("unexpected missing skills: %v", analysis.MissingSkills)
	}
}

func TestAnalyzeJobDescription_MergesSplitSkillLists(t *testing.T) {
	server := newChatServer(t, `{
		"match_percentage": 64,
		"matched_technical_skills": ["Go", "PostgreSQL"],
		"matched_qualifications": ["Team leadership"],
		"missing_technical_skills": ["Kubernetes"],
		"missing_qualifications": ["PhD"]
	}`)
	defer server.Close()

	analysis, err := newTestClient(server.URL).AnalyzeJobDescription(context.Background(), "<html>resume</html>", "job")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	wantMatched := []string{"Go", "PostgreSQL", "Team leadership"}
	if !reflect.DeepEqual(analysis.MatchedSkills, wantMatched) {
		t.Fatalf("expected merged matched skills %v, got %v", wantMatched, analysis.MatchedSkills)
	}
	wantMissing := []string{"Kubernetes", "PhD"}
	if !reflect.DeepEqual(analysis.MissingSkills, wantMissing) {
		t.Fatalf("expected merged missing skills %v, got %v", wantMissing, analysis.MissingSkills)
	}
}

func TestAnalyzeJobDescription_FencedJSON(t *testing.T) {
	server := newChatServer(t, "```json\n{\"match_percentage\":50,\"matched_skills\":[],\"missing_skills\":[]}\n```")
	defer server.Close()

	analysis, err := newTestClient(server.URL).AnalyzeJobDescription(context.Background(), "<html>resume</html>", "job")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.MatchPercentage != 50.0 {
		t.Fatalf("expected match percentage 50, got %v", analysis.MatchPercentage)
	}
}

func TestAnalyzeJobDescription_UpstreamStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).AnalyzeJobDescription(context.Background(), "<html>resume</html>", "job")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestAnalyzeJobDescription_MalformedContent(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"not json", "the model felt chatty today"},
		{"missing match_percentage", `{"matched_skills":["Python"],"missing_skills":[]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := newChatServer(t, tc.content)
			defer server.Close()

			_, err := newTestClient(server.URL).AnalyzeJobDescription(context.Background(), "<html>resume</html>", "job")
			if !errors.Is(err, ErrUpstream) {
				t.Fatalf("expected ErrUpstream, got %v", err)
			}
		})
	}
}

func TestEnhanceResume_ParsesResult(t *testing.T) {
	server := newChatServer(t, `{
		"enhanced_content": "<html><body>better resume</body></html>",
		"changes_made": ["added Go to skills"],
		"html_preview": "<html><body>preview</body></html>"
	}`)
	defer server.Close()

	enhancement, err := newTestClient(server.URL).EnhanceResume(context.Background(), "<html>resume</html>", []string{"Go"})
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if enhancement.EnhancedContent != "<html><body>better resume</body></html>" {
		t.Fatalf("unexpected enhanced content: %q", enhancement.EnhancedContent)
	}
	if len(enhancement.ChangesMade) != 1 {
		t.Fatalf("unexpected changes list: %v", enhancement.ChangesMade)
	}
}

func TestEnhanceResume_MissingEnhancedContent(t *testing.T) {
	server := newChatServer(t, `{"changes_made":["nothing"]}`)
	defer server.Close()

	_, err := newTestClient(server.URL).EnhanceResume(context.Background(), "<html>resume</html>", []string{"Go"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}
