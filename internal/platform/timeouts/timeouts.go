// Package timeouts defines shared timeout constants for the chronicle runtime.
package timeouts

import "time"

// SimulationRequest caps one HTTP round trip to the simulation service.
const SimulationRequest = 10 * time.Second

// ReadHeader limits how long the presentation HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests on exit.
const Shutdown = 5 * time.Second

// WebsocketWrite bounds a single live-feed frame write to a slow client.
const WebsocketWrite = 2 * time.Second
