// Package exchange provides the venue abstraction the engine trades
// against: a mock in-memory implementation for tests and local runs, and a
// resilient reconnecting WebSocket feed for live market data (§6).
package exchange

import "ictengine/internal/core"

// Exchange is core.IExchange, restated here so callers in this package can
// depend on a name local to the venue layer.
type Exchange = core.IExchange
