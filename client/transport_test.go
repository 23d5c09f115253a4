package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/domain/usage"
)

func TestGatewayClient_Open(t *testing.T) {
	var gotAuth, gotAccept, gotAccount string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stream" {
			t.Errorf("path = %q, want /stream", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotAccount = r.URL.Query().Get("accountId")
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\":\"quota_updated\"}\n\n")
	}))
	defer server.Close()

	g := NewGatewayClient(server.URL, "jwt-123")
	stream, err := g.Open(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Close()

	body, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(body) != "data: {\"type\":\"quota_updated\"}\n\n" {
		t.Errorf("stream body = %q", body)
	}
	if gotAuth != "Bearer jwt-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAccept != "text/event-stream" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotAccount != "acc-1" {
		t.Errorf("accountId = %q", gotAccount)
	}
}

func TestGatewayClient_OpenRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	g := NewGatewayClient(server.URL, "bad-token")
	if _, err := g.Open(context.Background(), "acc-1"); err == nil {
		t.Fatal("Open succeeded on 401, want error")
	}
}

func TestGatewayClient_QuotaStatus(t *testing.T) {
	want := quota.Status{MonthlyQuota: 1000, MonthlyUsed: 250, CurrentGroup: "pro", Allowed: true}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quota/status" {
			t.Errorf("path = %q, want /quota/status", r.URL.Path)
		}
		json.NewEncoder(w).Encode(want)
	}))
	defer server.Close()

	g := NewGatewayClient(server.URL, "jwt-123")
	got, err := g.QuotaStatus(context.Background())
	if err != nil {
		t.Fatalf("QuotaStatus: %v", err)
	}
	if got != want {
		t.Errorf("status = %+v, want %+v", got, want)
	}
}

func TestGatewayClient_UsageHistory(t *testing.T) {
	var gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		json.NewEncoder(w).Encode([]usage.Record{{ID: "r-1", Model: "claude-3", Time: "02:05 PM"}})
	}))
	defer server.Close()

	g := NewGatewayClient(server.URL, "jwt-123")
	records, err := g.UsageHistory(context.Background(), 5)
	if err != nil {
		t.Fatalf("UsageHistory: %v", err)
	}
	if gotLimit != "5" {
		t.Errorf("limit = %q, want 5", gotLimit)
	}
	if len(records) != 1 || records[0].ID != "r-1" {
		t.Errorf("records = %+v", records)
	}
}
