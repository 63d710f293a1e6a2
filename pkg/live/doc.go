// Package live is the client-side core of a group-discussion session: it
// keeps an authoritative local cache of session state, multiplexes the
// WebSocket signaling channel, maintains a full-mesh set of peer connections,
// merges speech-to-text fragments into a shared transcript, and drives the
// session countdown through its conclusion phase.
//
// The package is organized around one writer: [Client] owns a [Store] whose
// entries are only ever replaced by server responses or inbound topic
// updates. There is no speculative merging of concurrent edits; the
// server-returned session object always wins.
//
// Peer connections are established over the mesh contract: every existing
// participant initiates an offer toward a new joiner, so the resulting graph
// is complete. The [PeerConnector] interface keeps the topology logic
// independent of the media engine; [WebRTCConnector] is the pion-backed
// production implementation, and a relay/SFU strategy can be slotted in
// behind the same signaling contract.
//
// Speech capture is driven by a [Transcriber] that tracks recording intent
// separately from the recognition stream's running state: platform-imposed
// stream limits trigger an automatic restart, while an intentional stop
// (user action, session end) never does.
package live
