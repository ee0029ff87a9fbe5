package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req embedReq
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" || req.Prompt != "grinding brakes" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"embedding":[0.5,-0.25,1]}`))
	}))
	defer srv.Close()

	vec, err := New(srv.URL+"/").Embed(context.Background(), "nomic-embed-text", "grinding brakes")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -0.25 {
		t.Fatalf("vec = %v", vec)
	}
}

func TestEmbed_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Embed(context.Background(), "missing", "x")
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req chatReq
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream || req.Format != "json" || len(req.Messages) != 2 || req.Options.NumPredict != 100 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"{\"ok\":true}"},"done":true}`))
	}))
	defer srv.Close()

	out, err := New(srv.URL).Chat(context.Background(), ChatRequest{
		Model:     "llama3.1:8b",
		Messages:  []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}},
		MaxTokens: 100,
		JSON:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("out = %q", out)
	}
}

func TestChat_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Chat(context.Background(), ChatRequest{Model: "m"}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestChat_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New("http://127.0.0.1:1").Chat(ctx, ChatRequest{Model: "m"}); err == nil {
		t.Fatal("expected error")
	}
}
