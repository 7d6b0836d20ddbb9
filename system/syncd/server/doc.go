// Package server provides the HTTP server of the scene sync protocol.
//
// For every client id the server keeps the last scene snapshot it accepted
// and the array identity store used to decode it. Absolute payloads replace
// the snapshot; patch payloads are applied to it. Each client's payloads
// are processed one at a time; distinct clients proceed in parallel.
//
// Entries are evicted least recently used first beyond Config.MaxClients,
// after Config.ClientTTL of inactivity, and whenever a decode failure leaves
// the identity store in doubt. An evicted client receives 410 Gone on its
// next patch and resynchronizes.
//
// # Related Packages
//
//   - github.com/signadot/scenesync/system/syncd/api - API types
//   - github.com/signadot/scenesync/scene - snapshot decoding
//   - github.com/signadot/scenesync/render - default artifact
package server
