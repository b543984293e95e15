// Package integration contains graceful-shutdown tests for the relay.
package integration

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chatrelay/relay/internal/server"
	"github.com/chatrelay/relay/test/testhelpers"
)

func TestHubShutdownClosesSessions(t *testing.T) {
	req := require.New(t)

	roster := server.NewRoster()
	hub := server.NewHub(roster, zerolog.Nop())
	go hub.Run()

	svc := server.NewChatService(roster, hub, server.NewConfig(), zerolog.Nop())
	relay := testhelpers.StartRelayWith(t, svc)

	conn := testhelpers.ConnectWebSocket(t, relay.WebSocketURL())
	testhelpers.ReadRosterFrame(t, conn, 2*time.Second)

	req.NoError(hub.Shutdown(2 * time.Second))

	// The session's connection is closed by the shutdown; the next read
	// fails promptly.
	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := conn.ReadMessage()
	req.Error(err)
}

func TestHTTPServerShutdown(t *testing.T) {
	req := require.New(t)

	roster := server.NewRoster()
	hub := server.NewHub(roster, zerolog.Nop())
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })

	svc := server.NewChatService(roster, hub, server.NewConfig(), zerolog.Nop())
	httpServer := server.CreateServer(":0", server.SetupRoutes(svc))

	req.NoError(server.ShutdownServer(httpServer, time.Second))
}
