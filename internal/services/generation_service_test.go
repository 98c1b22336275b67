package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"personachat/internal/models"
)

const completionJSON = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "test-model",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  Consistency matters most.  "}}]
}`

func TestGenerationService_Generate(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionJSON)
	}))
	defer srv.Close()

	gen := NewGenerationService(GenerationConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}, nil)

	prior := []models.ConversationTurn{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "namaste!"},
	}
	reply, err := gen.Generate(context.Background(), "USER QUERY: how to grow?", prior)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "Consistency matters most." {
		t.Errorf("reply = %q", reply)
	}

	messages, _ := body["messages"].([]interface{})
	if len(messages) != 3 {
		t.Fatalf("sent %d messages, want 3", len(messages))
	}
	roles := []string{"user", "assistant", "user"}
	for i, m := range messages {
		msg := m.(map[string]interface{})
		if msg["role"] != roles[i] {
			t.Errorf("message %d role = %v, want %s", i, msg["role"], roles[i])
		}
	}
	if body["model"] != "test-model" {
		t.Errorf("model = %v", body["model"])
	}
}

func TestGenerationService_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":{"message":"boom"}}`)
		}},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			gen := NewGenerationService(GenerationConfig{
				BaseURL: srv.URL,
				APIKey:  "k",
				Model:   "m",
				Timeout: 100 * time.Millisecond,
			}, nil)

			_, err := gen.Generate(context.Background(), "prompt", nil)
			if !errors.Is(err, ErrGenerationUnavailable) {
				t.Errorf("error = %v, want generation_unavailable", err)
			}
		})
	}
}
