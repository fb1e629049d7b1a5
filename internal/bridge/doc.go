// Package bridge routes extension API calls to host-side providers.
//
// Extensions call out of the sandbox with api:call frames carrying a
// caller-generated call id, an api namespace and a method. The router
// looks up the namespace handler, executes it with a deadline, and
// sends api:result or api:error back over the bus with the same id.
// Unknown namespaces and handler panics become error replies rather
// than host failures.
package bridge
