// Package api defines the REST API handlers for the task server.
package api

import "github.com/GoCodeAlone/fieldops/server/ws"

// Broadcaster pushes task events to connected clients. Implemented by
// *ws.Hub.
type Broadcaster interface {
	Broadcast(event ws.Event)
	Clients() int
}
