// Package stores provides Redis-backed record stores for the two token
// families the engine manages: long-lived refresh tokens and single-use
// verification tokens.
//
// # Design
//
// Each record lives under its own key, namespaced per entity type by
// internal/keys, with expiry delegated to the key's TTL. There is no
// multi-key transaction anywhere: correctness rests on single-key atomic
// operations only (SET-with-TTL, GET, DEL, GETDEL). Refresh records are
// versioned binary blobs; verification records are the bare subject identity.
//
// Transport failures always surface as the store's *Unavailable sentinel so
// callers can choose a fail-open or fail-closed posture; a missing key is its
// own sentinel and is never treated as a failure.
//
// # What this package must NOT do
//
//   - Generate token values (internal/token owns entropy).
//   - Make accept/reject decisions (the engine owns policy).
//   - Import the root package or any sibling except internal/keys.
package stores
