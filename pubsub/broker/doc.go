// Package broker implements the local publish/subscribe broker.
//
// The broker is a WebSocket server. Every WebSocket message is one JSON
// Frame. Clients send:
//
//	{"type":"subscribe","channel":"c"}
//	{"type":"publish","channel":"c","message":"<base64>"}
//	{"type":"ping","message":"<base64 of Identity>"}
//
// and receive broadcasts as {"channel":"c","message":"<base64>"}. A ping
// whose message equals Identity is answered with a text message holding
// Identity; any other ping is ignored.
//
// Each connection has a bounded outbound queue drained by its own writer
// goroutine. A subscriber whose queue is full, or whose write fails, loses
// that message and is logged; delivery to the other subscribers continues
// and the publisher is never told.
package broker
