package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fr0stylo/linevault/internal/app/ports"
)

func fakeGraph(t *testing.T, tokenCalls *atomic.Int64, uploadStatus int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/oauth2/v2.0/token"):
			tokenCalls.Add(1)
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse token form: %v", err)
			}
			if r.PostForm.Get("grant_type") != "client_credentials" {
				t.Errorf("unexpected grant type: %q", r.PostForm.Get("grant_type"))
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "graph-token",
				"expires_in":   3600,
			})
		case strings.Contains(r.URL.Path, "/drives/drive-1/root:/"):
			if r.Method != http.MethodPut {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if r.Header.Get("Authorization") != "Bearer graph-token" {
				t.Errorf("unexpected authorization: %q", r.Header.Get("Authorization"))
			}
			if r.URL.Query().Get("@microsoft.graph.conflictBehavior") != "replace" {
				t.Errorf("expected replace conflict behavior, got %q", r.URL.RawQuery)
			}
			if uploadStatus >= http.StatusBadRequest {
				http.Error(w, "rejected", uploadStatus)
				return
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "item-1",
				"name":   "m1_1700000000000.jpg",
				"webUrl": "https://sharepoint.example.com/item-1",
				"size":   5,
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func newTestSharePoint(t *testing.T, baseURL string) *SharePoint {
	t.Helper()
	sp, err := NewSharePoint(SharePointConfig{
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		DriveID:      "drive-1",
		LoginBaseURL: baseURL,
		GraphBaseURL: baseURL,
	})
	if err != nil {
		t.Fatalf("new sharepoint storage: %v", err)
	}
	return sp
}

func TestSharePointUploadReturnsDriveItemRef(t *testing.T) {
	t.Parallel()

	var tokenCalls atomic.Int64
	graph := fakeGraph(t, &tokenCalls, http.StatusCreated)
	t.Cleanup(graph.Close)

	sp := newTestSharePoint(t, graph.URL)
	uploaded, err := sp.Upload(context.Background(), []byte("bytes"), "m1_1700000000000.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if uploaded.URL != "https://sharepoint.example.com/item-1" || uploaded.ID != "item-1" {
		t.Fatalf("unexpected ref: %+v", uploaded)
	}
	if uploaded.Size != 5 {
		t.Fatalf("unexpected size: %d", uploaded.Size)
	}
}

func TestSharePointCachesAccessToken(t *testing.T) {
	t.Parallel()

	var tokenCalls atomic.Int64
	graph := fakeGraph(t, &tokenCalls, http.StatusCreated)
	t.Cleanup(graph.Close)

	sp := newTestSharePoint(t, graph.URL)
	for i := 0; i < 3; i++ {
		if _, err := sp.Upload(context.Background(), []byte("bytes"), "m1_1700000000000.jpg", "image/jpeg"); err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
	}
	if got := tokenCalls.Load(); got != 1 {
		t.Fatalf("expected one token fetch, got %d", got)
	}
}

func TestSharePointUploadWrapsRejection(t *testing.T) {
	t.Parallel()

	var tokenCalls atomic.Int64
	graph := fakeGraph(t, &tokenCalls, http.StatusForbidden)
	t.Cleanup(graph.Close)

	sp := newTestSharePoint(t, graph.URL)
	_, err := sp.Upload(context.Background(), []byte("bytes"), "m1_1700000000000.jpg", "image/jpeg")
	if !errors.Is(err, ports.ErrUpload) {
		t.Fatalf("expected ErrUpload, got %v", err)
	}
}

func TestNewSharePointRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewSharePoint(SharePointConfig{TenantID: "tenant-1"}); err == nil {
		t.Fatal("expected incomplete config to fail")
	}
}
