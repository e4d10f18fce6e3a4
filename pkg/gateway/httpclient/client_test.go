package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsUnreachable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", fmt.Errorf("wrapped: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "pec.invalid"}, true},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, true},
		{"other", errors.New("malformed response"), false},
	}
	for _, tc := range cases {
		if got := IsUnreachable(tc.err); got != tc.want {
			t.Errorf("%s: IsUnreachable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsUnreachableClosedServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(time.Second).Get(addr)
	if err == nil {
		t.Fatal("expected dial error")
	}
	if !IsUnreachable(err) {
		t.Fatalf("closed server should be unreachable: %v", err)
	}
}
