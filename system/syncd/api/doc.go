// Package api defines the wire types of the scene sync protocol.
//
// A client POSTs a [Payload] to [RenderPath]. An absolute payload carries a
// scene snapshot; a patch payload carries the RFC 6902 operations turning
// the last snapshot the server accepted from that client into the current
// one. The response is the rendered artifact, or an [Error] body:
//
//   - 410 Gone, code resync_required: the server has no usable state for the
//     client, which must reset its array tracking and resend absolute.
//   - 422, code patch_failed: the patch did not apply.
//   - 400, code invalid_payload: the request itself is malformed.
//
// # Related Packages
//
//   - github.com/signadot/scenesync/system/syncd/server - server side
//   - github.com/signadot/scenesync/system/syncd/client - client side
package api
