// Package websocket serves the live query channel of a session.
//
// A client connects to /ws/sessions/{id} and receives a "connected" message.
// Each "query" message it sends carries a view request (start, end, mission)
// and is answered with one "view" or "error" message echoing the query id.
// Queries on one connection are answered in order. When the session is
// closed or expires, its clients get a fatal error and are disconnected.
package websocket
