// Package bridge implements the tolerant message client for agent bridges.
//
// The downstream bridge process is a black box: different implementations
// mount their message endpoint at different paths and return responses in
// different JSON shapes. This client papers over both problems:
//
//   - Delivery tries a short ordered list of candidate endpoints (/a2a, the
//     bare base, /send, /message, /messages) and stops at the first one that
//     answers at the transport level, regardless of HTTP status.
//   - Normalization applies a priority-ordered list of extractors to the
//     response payload to recover a text reply and conversation id from
//     whatever shape came back.
//
// SendMessage never returns an error. Timeouts, connection failures, error
// payloads, and unrecognizable responses all become a Reply whose text
// starts with the error marker or echoes the raw payload.
package bridge
