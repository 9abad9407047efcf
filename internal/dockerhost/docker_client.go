package dockerhost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/docker/docker/client"
)

const defaultPingTimeout = 5 * time.Second

// DockerClient implements Pinger with the Docker Go SDK.
type DockerClient struct {
	api     *client.Client
	timeout time.Duration
}

// NewDockerClient connects lazily to host. An empty host falls back to
// DOCKER_HOST and then the platform default socket. A zero timeout uses 5s.
func NewDockerClient(host string, timeout time.Duration) (*DockerClient, error) {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host), client.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker client for %q: %w", host, err)
	}
	return &DockerClient{api: api, timeout: timeout}, nil
}

// Host is the daemon address the client talks to.
func (c *DockerClient) Host() string {
	if c == nil || c.api == nil {
		return ""
	}
	return c.api.DaemonHost()
}

// Ping implements Pinger. Failures are returned as *UnreachableError.
func (c *DockerClient) Ping(ctx context.Context) (Daemon, error) {
	if c == nil || c.api == nil {
		return Daemon{}, errors.New("docker client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ping, err := c.api.Ping(ctx)
	if err != nil {
		return Daemon{}, &UnreachableError{Host: c.Host(), Refused: client.IsErrConnectionFailed(err), Err: err}
	}
	return Daemon{
		APIVersion:     ping.APIVersion,
		OSType:         ping.OSType,
		BuilderVersion: string(ping.BuilderVersion),
		Experimental:   ping.Experimental,
	}, nil
}

// Close releases the underlying transport.
func (c *DockerClient) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}
