package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{
				{"name": "llama3"},
				{"name": "mistral"},
			},
		})
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaOptions{Host: server.URL})

	models, err := client.Models(context.Background())
	if err != nil {
		t.Fatalf("Models() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("Models() returned %d models, want 2", len(models))
	}
	if models[0] != "llama3" {
		t.Errorf("Models()[0] = %v, want llama3", models[0])
	}
}

func TestOllamaComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}

		var req struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
			Stream   bool      `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		if req.Model != "llama3" {
			t.Errorf("model = %v, want llama3", req.Model)
		}
		if req.Stream {
			t.Error("stream = true, want false")
		}
		if len(req.Messages) != 2 {
			t.Errorf("messages length = %d, want 2", len(req.Messages))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"message": Message{Role: RoleAssistant, Content: "Hello back"},
		})
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaOptions{Host: server.URL, Model: "llama3"})

	transcript := []Message{
		{Role: RoleUser, Content: "Hi"},
		{Role: RoleAssistant, Content: "Hello"},
	}
	got, err := client.Complete(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "Hello back" {
		t.Errorf("Complete() = %v, want Hello back", got)
	}
}

func TestOllamaCompleteDiscoversModel(t *testing.T) {
	var chatModel string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/tags":
			json.NewEncoder(w).Encode(map[string]any{
				"models": []map[string]string{{"name": "mistral"}},
			})
		case "/api/chat":
			var req struct {
				Model string `json:"model"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			chatModel = req.Model
			json.NewEncoder(w).Encode(map[string]any{
				"message": Message{Role: RoleAssistant, Content: "ok"},
			})
		}
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaOptions{Host: server.URL})

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if chatModel != "mistral" {
		t.Errorf("discovered model = %v, want mistral", chatModel)
	}
}

func TestOllamaCompleteNoModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"models": []map[string]string{}})
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaOptions{Host: server.URL})

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Complete() error = %v, want ErrUnavailable", err)
	}
}

func TestOllamaCompleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaOptions{Host: server.URL, Model: "llama3"})

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Complete() error = %v, want ErrUnavailable", err)
	}
}
