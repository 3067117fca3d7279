// Package disbursementengine guarantees at-most-once execution of
// disbursements against an unreliable downstream bank network.
//
// Every logical money movement is identified by a caller-supplied
// idempotency key. A single durable record per key, created
// first-writer-wins and mutated only through version-guarded writes, is
// the sole source of truth. The coordinator routes each submit to one of
// four paths: originate (creation winner), wait (in-flight record),
// replay (settled record), or reject (key reused with a different
// payload). Ambiguous downstream outcomes are parked in PENDING and
// re-queried by the reconciliation worker until they settle or exhaust
// their attempt budget, at which point the record is escalated for manual
// resolution as UNKNOWN.
package disbursementengine
