package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPairSendsHostFieldsAndDecodesCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/devices/pair" {
			t.Errorf("path = %s, want /api/v1/devices/pair", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}

		var req PairRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.PairingCode != "ABCD-1234" || req.Hostname != "gaming-rig" {
			t.Errorf("request = %+v", req)
		}

		json.NewEncoder(w).Encode(PairResponse{
			DeviceID: "dev-42",
			Token:    "tok-secret",
			LiveURL:  "wss://live.example.com/session",
			Model:    "coach-live-v2",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	resp, err := c.Pair(context.Background(), &PairRequest{
		PairingCode:  "ABCD-1234",
		Hostname:     "gaming-rig",
		OSType:       "windows",
		Architecture: "amd64",
	})
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if resp.DeviceID != "dev-42" || resp.Token != "tok-secret" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.LiveURL != "wss://live.example.com/session" {
		t.Fatalf("LiveURL = %s", resp.LiveURL)
	}
}

func TestPairRejectedCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("pairing code expired"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	_, err := c.Pair(context.Background(), &PairRequest{PairingCode: "OLD-CODE"})
	if err == nil {
		t.Fatal("Pair should fail on 403")
	}
}

func TestPairMissingCredentialsInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PairResponse{DeviceID: "dev-42"}) // no token
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	if _, err := c.Pair(context.Background(), &PairRequest{PairingCode: "ABCD-1234"}); err == nil {
		t.Fatal("Pair should reject a response without a token")
	}
}

func TestFetchTemplatesSendsAuth(t *testing.T) {
	const body = "default:\n  start: \"hi\"\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/coaching/templates" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok-secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if dev := r.Header.Get("X-Device-ID"); dev != "dev-42" {
			t.Errorf("X-Device-ID = %q", dev)
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-secret", "dev-42")
	data, err := c.FetchTemplates(context.Background())
	if err != nil {
		t.Fatalf("FetchTemplates: %v", err)
	}
	if string(data) != body {
		t.Fatalf("templates = %q, want %q", data, body)
	}
}

func TestFetchTemplatesUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-token", "dev-42")
	if _, err := c.FetchTemplates(context.Background()); err == nil {
		t.Fatal("FetchTemplates should fail on 401")
	}
}
