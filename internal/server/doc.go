// Package server exposes the email assistant over HTTP: the Google
// OAuth consent flow, a JSON API for unread mail, reply generation and
// drafts, plus health probes and a dedicated Prometheus metrics
// listener.
//
// All API responses share one envelope: {"ok": true, ...} on success,
// {"ok": false, "error": "..."} on failure. Server-side sessions keyed
// by a random cookie carry the pending OAuth state; the Gmail
// credential itself is persisted independently and survives logout.
package server
