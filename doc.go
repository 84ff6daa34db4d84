// Package setlive is the realtime synchronization layer for a live-band
// song request board. It keeps a local view of server-owned collections
// (requests, set lists) eventually consistent across three independently
// timed sources: optimistic local mutations, cached reads, and an unordered
// stream of change notifications from the backing row store.
//
// Open assembles the shared collaborators (store client, change feed,
// channel registry, cache, optimistic registry) into a Board and starts the
// per-collection sync controllers. The Board is the only entry point a UI
// layer needs: it exposes the merged view models, mutation actions with
// optimistic insertion and rollback, and reconnect hooks for visibility and
// network changes.
package setlive
