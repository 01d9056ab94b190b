package downstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublishDocument(t *testing.T) {
	var got DocumentRequest
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	defer c.Close()

	err := c.PublishDocument(context.Background(), "bwa mem", DocumentRequest{
		SourcePath:     "mappers/bwa.xml",
		XML:            "<tool/>",
		TemplateParams: map[string]string{"CMD": "bwa"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if gotPath != "/documents/bwa mem" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if got.SourcePath != "mappers/bwa.xml" || got.TemplateParams["CMD"] != "bwa" {
		t.Errorf("request = %+v", got)
	}
}

func TestPublishStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c := NewClient(srv.URL, "key")

		err := c.PublishDocument(context.Background(), "doc", DocumentRequest{XML: "<tool/>"})
		if err == nil {
			t.Errorf("status %d: expected error", tt.status)
		}
		var re *RetryableError
		if errors.As(err, &re) != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, !tt.retryable, tt.retryable)
		}
		srv.Close()
		c.Close()
	}
}

func TestPublishTransportErrorRetryable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "key")
	defer c.Close()
	err := c.PublishDocument(context.Background(), "doc", DocumentRequest{XML: "<tool/>"})
	var re *RetryableError
	if !errors.As(err, &re) {
		t.Errorf("transport error not retryable: %v", err)
	}
}
