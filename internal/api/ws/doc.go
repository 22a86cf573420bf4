// Package ws streams the kernel console to WebSocket clients.
//
// Each connection is one subscriber: it receives everything the console
// prints from the moment it attaches. Output that a slow client cannot keep
// up with is dropped for that client only.
//
// Message Types (Server → Client):
//   - system: sent once on attach, carries the stream id
//   - output: a chunk of console output
//   - pong: reply to a client ping
//   - closed: the console stream ended (machine halted)
//
// Message Types (Client → Server):
//   - ping: keep-alive
//
// Example Usage:
//
//	handler := ws.NewHandler(machine.Console(), logger)
//	router.GET("/api/console", handler.HandleConnection)
package ws
