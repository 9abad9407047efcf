// Package dockerhost checks that the container engine daemon is reachable
// before the deploy workflows shell out to the docker CLI.
package dockerhost

import (
	"context"
	"fmt"
)

// Daemon describes the engine answering a ping.
type Daemon struct {
	APIVersion     string
	OSType         string
	BuilderVersion string
	Experimental   bool
}

// Pinger validates connectivity to the container engine.
type Pinger interface {
	Ping(ctx context.Context) (Daemon, error)
}

// UnreachableError reports a daemon that did not answer.
type UnreachableError struct {
	Host    string
	Refused bool
	Err     error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("docker daemon at %s unreachable: %v", e.Host, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Diagnostic is the operator-facing hint.
func (e *UnreachableError) Diagnostic() string {
	if e.Refused {
		return fmt.Sprintf("cannot connect to the docker daemon at %s; is it running?", e.Host)
	}
	return e.Error()
}
