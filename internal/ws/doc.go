// Package ws provides the WebSocket side of a session: the JSON messages
// exchanged with the client and a connection wrapper with read and write
// pumps.
//
// Client frames carry {"line": <string>}. Server frames carry either a
// record {"stdout": ..., "stderr": ...}, an error {"stderr": ...}, or a
// close notification {"sessionClosed": true} with an optional stdout.
// Each server message travels in its own text frame.
package ws
