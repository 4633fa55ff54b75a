package http

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"reading-adventure-service/internal/app"
	"reading-adventure-service/internal/domain"
	"reading-adventure-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	service := app.NewReadingService(
		memory.NewStoryRepository(memory.NewStaticStoryGenerator(memory.SampleStory(), nil), 0),
		memory.NewSessionStore(time.Hour),
		memory.NewProfileStore(memory.NewProgressStore()),
		app.NewFeedbackPicker(rand.New(rand.NewSource(1))),
	)
	profiles := NewProfileResolver([]byte("test-secret-test-secret-test-sec"))

	mux := http.NewServeMux()
	NewAPIHandler(service, profiles, time.Second).Register(mux)
	mux.HandleFunc("/ws", NewWSHandler(service, profiles).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func createStory(t *testing.T, client *http.Client, baseURL string) domain.SessionSnapshot {
	t.Helper()
	var snap domain.SessionSnapshot
	status := doJSON(t, client, http.MethodPost, baseURL+"/api/story", domain.StoryParams{
		Theme: "adventure", Characters: "Pip the hedgehog", ReadingLevel: "2",
	}, &snap)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	return snap
}
