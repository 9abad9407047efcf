package dockerhost

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func pingServer(t *testing.T, status int, headers map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/_ping") {
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
			return
		}
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, host string) *DockerClient {
	t.Helper()
	c, err := NewDockerClient(host, 2*time.Second)
	if err != nil {
		t.Fatalf("NewDockerClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPingReportsDaemon(t *testing.T) {
	server := pingServer(t, http.StatusOK, map[string]string{
		"API-Version":         "1.45",
		"OSType":              "linux",
		"Builder-Version":     "2",
		"Docker-Experimental": "true",
	})
	c := newTestClient(t, server.URL)

	daemon, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	want := Daemon{APIVersion: "1.45", OSType: "linux", BuilderVersion: "2", Experimental: true}
	if daemon != want {
		t.Fatalf("got %+v, want %+v", daemon, want)
	}
}

func TestPingServerError(t *testing.T) {
	server := pingServer(t, http.StatusInternalServerError, nil)
	c := newTestClient(t, server.URL)

	_, err := c.Ping(context.Background())
	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected UnreachableError, got %v", err)
	}
	if unreachable.Host != c.Host() || unreachable.Refused {
		t.Fatalf("unexpected error fields %+v", unreachable)
	}
}

func TestPingRefusedHasHint(t *testing.T) {
	server := pingServer(t, http.StatusOK, nil)
	host := server.URL
	server.Close()

	_, err := newTestClient(t, host).Ping(context.Background())
	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected UnreachableError, got %v", err)
	}
	if !strings.Contains(unreachable.Diagnostic(), host) {
		t.Fatalf("diagnostic should name the host: %s", unreachable.Diagnostic())
	}
}

func TestNilClient(t *testing.T) {
	var c *DockerClient
	if _, err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error from nil client")
	}
	if c.Host() != "" || c.Close() != nil {
		t.Fatal("nil client should be inert")
	}
}
