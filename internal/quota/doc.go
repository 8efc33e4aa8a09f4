// Package quota enforces the per-client freemium allowance for compression
// jobs.
//
// Free clients get a fixed number of jobs per rolling window (24h by
// default) and a small maximum file size; pro clients have no job limit and
// a larger size cap. Usage lives in SQLite, schema managed by goose
// migrations embedded in the binary. Client identifiers (normally the
// remote IP) are stored only as keyed BLAKE2b digests.
//
// The HTTP layer depends on the Checker interface; Unlimited is the
// implementation used when quotas are disabled.
package quota
