/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and wires the session
state, recommendation requestor and device simulator into the router.
*/
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dropcheck/internal/auth"
	"dropcheck/internal/device"
	"dropcheck/internal/recommendation"
	"dropcheck/internal/session"
	"dropcheck/internal/utility"
)

// HealthChecker reports the state of the storage backend.
type HealthChecker interface {
	Health() map[string]string
}

// Recommender produces a bundle for a validated request.
type Recommender interface {
	Request(ctx context.Context, req recommendation.Request) (recommendation.Bundle, error)
}

// BreakerState reports a circuit breaker's state.
type BreakerState interface {
	State() string
}

// Deps are the services the handlers depend on.
type Deps struct {
	Store       HealthChecker
	State       *session.State
	Recommender Recommender
	Device      *device.Simulator
	Auth        *auth.Authenticator
	Hub         *utility.Hub

	// Breaker is set when model calls go through a circuit breaker.
	Breaker BreakerState

	// RateLimitPerMinute caps requests per session. Zero disables the limit.
	RateLimitPerMinute int
}

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	store       HealthChecker
	state       *session.State
	recommender Recommender
	device      *device.Simulator
	auth        *auth.Authenticator
	hub         *utility.Hub
	limiter     *utility.RateLimiter
	breaker     BreakerState

	startTime time.Time
}

// New builds a Server from its dependencies. A nil Hub or Device gets a
// default one.
func New(port int, d Deps) *Server {
	hub := d.Hub
	if hub == nil {
		hub = utility.NewHub()
	}
	sim := d.Device
	if sim == nil {
		sim = device.NewSimulator(device.DefaultConfig())
	}
	return &Server{
		port:        port,
		store:       d.Store,
		state:       d.State,
		recommender: d.Recommender,
		device:      sim,
		auth:        d.Auth,
		hub:         hub,
		limiter:     utility.NewRateLimiter(d.RateLimitPerMinute),
		breaker:     d.Breaker,
		startTime:   time.Now(),
	}
}

// NewServer returns a configured *http.Server with production network
// timeouts.
func NewServer(port int, d Deps) *http.Server {
	newApp := New(port, d)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(),
		IdleTimeout:  time.Minute,      // Time to wait for the next request on keep-alive connections.
		ReadTimeout:  10 * time.Second, // Maximum duration for reading the entire request.
		WriteTimeout: 90 * time.Second, // Covers a full model call including retries.
	}

	return server
}
