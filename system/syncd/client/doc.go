// Package client provides the client side of the scene sync protocol.
//
// A [Renderer] keeps the last snapshot the server accepted and sends each new
// frame as a JSON patch against it. When the server answers 410 Gone the
// renderer drops its array identities and resends the frame whole.
//
// # Related Packages
//
//   - github.com/signadot/scenesync/system/syncd/server - the server side
//   - github.com/signadot/scenesync/jsondiff - patch computation
package client
