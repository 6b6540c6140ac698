// Package connection serves and consumes the price stream over WebSocket.
//
// Handler is the server side: it upgrades GET /ws requests, registers each
// connection with the broadcaster and runs one read pump and one write pump
// per connection. In interactive mode clients manage their own symbol
// subscriptions; in broadcast mode every client receives the full snapshot
// each cycle and must not send anything.
//
// Client is the consuming side, used by the streamwatch tool and tests.
package connection
