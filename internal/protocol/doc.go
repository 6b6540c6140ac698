// Package protocol defines the streaming wire format.
//
// Inbound (interactive mode):
//
//	{"action":"subscribe","symbols":["AAPL","MSFT"]}
//	{"action":"unsubscribe","symbols":["AAPL"]}
//	{"action":"ping"}
//
// Outbound events carry an "event" discriminator: subscribed, unsubscribed,
// pong, error and update. Broadcast mode pushes the bare {"stocks":{...}}
// object instead of update events.
package protocol
