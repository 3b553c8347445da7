// Package voltgo is a client library for a Revolt-style chat service.
//
// A Client owns one gateway session: it authenticates over the persistent
// websocket, decodes inbound envelopes into typed events, keeps a bounded
// in-memory cache of the entities those events describe, and routes events to
// registered handlers without letting a slow handler stall ingestion.
package voltgo
