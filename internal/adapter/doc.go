// Package adapter answers cluster-wide queries about connections.
//
// Every process holds only its own clients' state. The horizontal
// adapter turns those per-process views into one answer by scatter/
// gather over the broadcast transport: it seeds an accumulator with
// the local answer, broadcasts a request, and merges each peer's
// response until all expected responders have answered or the
// deadline fires. Kind-specific merge rules keep the result shape:
// id-keyed overwrite for sockets and members, set union for channels,
// addition for counts, logical OR for existence.
//
// A request that does not gather all responses in time fails with
// domain.ErrRequestTimeout; partial data is discarded, never returned.
//
// The local adapter is the degenerate single-process case; both
// implement the Adapter interface, so callers never know whether a
// cluster is behind them.
package adapter
