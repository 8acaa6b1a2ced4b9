package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerate_HappyPath(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"results": [{"text": "  Hello there!  "}]}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	client := New(server.URL, 0)
	reply := client.Generate(context.Background(), "M\nYou: hi\nBot [safe]:", Options{})

	if reply != "Hello there!" {
		t.Errorf("Generate = %q, want trimmed %q", reply, "Hello there!")
	}
	if gotReq.Prompt != "M\nYou: hi\nBot [safe]:" {
		t.Errorf("request prompt = %q", gotReq.Prompt)
	}
	if gotReq.MaxNewTokens != DefaultMaxNewTokens {
		t.Errorf("max_new_tokens = %d, want %d", gotReq.MaxNewTokens, DefaultMaxNewTokens)
	}
	if len(gotReq.StopSequence) != 1 || gotReq.StopSequence[0] != "You:" {
		t.Errorf("stop_sequence = %v, want [You:]", gotReq.StopSequence)
	}
}

func TestGenerate_CustomOptions(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"results": [{"text": "ok"}]}`))
	}))
	defer server.Close()

	client := New(server.URL, 0)
	client.Generate(context.Background(), "p", Options{
		MaxNewTokens:  64,
		StopSequences: []string{"You:", "###"},
	})

	if gotReq.MaxNewTokens != 64 {
		t.Errorf("max_new_tokens = %d, want 64", gotReq.MaxNewTokens)
	}
	if len(gotReq.StopSequence) != 2 {
		t.Errorf("stop_sequence = %v, want two entries", gotReq.StopSequence)
	}
}

func TestGenerate_UnreachableBackend(t *testing.T) {
	// Grab a port that nothing listens on.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(url, time.Second)
	reply := client.Generate(context.Background(), "p", Options{})

	if !strings.Contains(reply, "Error") {
		t.Errorf("Generate against dead backend = %q, want placeholder containing %q", reply, "Error")
	}
	if !strings.HasPrefix(reply, "[Error contacting generation backend:") {
		t.Errorf("Generate = %q, want placeholder prefix", reply)
	}
}

func TestGenerate_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, 0)
	reply := client.Generate(context.Background(), "p", Options{})

	if !strings.Contains(reply, "Error") || !strings.Contains(reply, "503") {
		t.Errorf("Generate = %q, want placeholder mentioning the 503 status", reply)
	}
}

func TestGenerate_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	client := New(server.URL, 0)
	reply := client.Generate(context.Background(), "p", Options{})

	if !strings.Contains(reply, "Error") {
		t.Errorf("Generate = %q, want placeholder on malformed body", reply)
	}
}

func TestGenerate_EmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	client := New(server.URL, 0)
	reply := client.Generate(context.Background(), "p", Options{})

	if !strings.Contains(reply, "no results") {
		t.Errorf("Generate = %q, want placeholder mentioning missing results", reply)
	}
}

func TestGenerate_TimeoutResolvesToPlaceholder(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := New(server.URL, 50*time.Millisecond)

	done := make(chan string, 1)
	go func() {
		done <- client.Generate(context.Background(), "p", Options{})
	}()

	select {
	case reply := <-done:
		if !strings.Contains(reply, "Error") {
			t.Errorf("Generate = %q, want timeout placeholder", reply)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Generate hung past its timeout")
	}
}

func TestNew_Defaults(t *testing.T) {
	client := New("", 0)
	if client.Endpoint() != DefaultEndpoint {
		t.Errorf("Endpoint = %q, want %q", client.Endpoint(), DefaultEndpoint)
	}
}
