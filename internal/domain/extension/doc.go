/*
Package extension tracks installed extensions.

The registry is the single in-memory source of truth for manifest, trust
tier and lifecycle state, seeded from the extensions root at startup and
mutated in memory afterwards. The installer owns durability; the registry
never writes to disk.
*/
package extension
