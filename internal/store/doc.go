/*
Package store is the client for the extension store API.

The store serves extension listings, per-extension metadata and release
download URLs. All requests flow through a rate limiter and a circuit
breaker; transient failures are retried at the transport level and
listing responses are cached with a TTL. Downloaded archives are
verified against the store-supplied sha256 checksum when one is present.
*/
package store
