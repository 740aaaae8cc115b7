// Package transport implements the client side of the channel protocol used
// by the console's terminal rooms: one websocket connection multiplexing
// topic-addressed channels, each with its own join/leave lifecycle and named
// events.
//
// A Socket never reconnects or retries on its own. When the connection drops
// every registered channel moves to the errored state and its error handlers
// run; deciding whether to open a new socket is left to the caller.
package transport
