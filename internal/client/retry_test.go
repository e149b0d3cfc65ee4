package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		err  error
		want bool
	}{
		{"ok", &http.Response{StatusCode: http.StatusOK}, nil, false},
		{"bad request", &http.Response{StatusCode: http.StatusBadRequest}, nil, false},
		{"throttled", &http.Response{StatusCode: http.StatusTooManyRequests}, nil, true},
		{"bad gateway", &http.Response{StatusCode: http.StatusBadGateway}, nil, true},
		{"network", nil, errors.New("connection reset"), true},
		{"cancelled", nil, context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.resp, tt.err); got != tt.want {
				t.Errorf("ShouldRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRetryUnsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, dialErr := http.Get(url)
	if dialErr == nil {
		t.Fatal("expected a dial error against a closed server")
	}
	if !ShouldRetryUnsent(nil, dialErr) {
		t.Errorf("refused connection should be retried: %v", dialErr)
	}

	if ShouldRetryUnsent(&http.Response{StatusCode: http.StatusBadGateway}, nil) {
		t.Error("a delivered request must not be retried")
	}
	if ShouldRetryUnsent(nil, errors.New("read: connection reset by peer")) {
		t.Error("an error after sending must not be retried")
	}
}
