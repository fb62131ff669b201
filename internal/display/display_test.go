package display

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPush(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		want        string
		errContains string
	}{
		{name: "accepted", status: 200, body: `{"text":"美品のTシャツです"}`, want: "美品のTシャツです"},
		{name: "empty echo keeps input", status: 200, body: `{}`, want: "美品のTシャツです"},
		{name: "detail surfaced", status: 422, body: `{"detail":"text too long"}`, errContains: "text too long"},
		{name: "no detail", status: 500, body: `oops`, errContains: "status 500"},
		{name: "bad json", status: 200, body: `not json`, errContains: "parse response"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/display-text" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				var req pushRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode: %v", err)
				}
				if req.UserID != "p1" || req.Text == "" {
					t.Errorf("unexpected payload %+v", req)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			got, err := NewClient(server.URL+"/", time.Second).Push(context.Background(), "美品のTシャツです", "p1")
			if tc.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("expected error containing %q, got %v", tc.errContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPush_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if _, err := NewClient(url, time.Second).Push(context.Background(), "t", "u"); err == nil {
		t.Fatal("expected connection error")
	}
}
