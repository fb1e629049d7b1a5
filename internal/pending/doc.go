/*
Package pending tracks in-flight calls awaiting replies from the runtime.

Both API calls bridged to the runtime and host-level queries such as stats
requests share a single registry keyed by call ID. A call resolves exactly
once: by a matching reply, by its timeout, or by a flush when the runtime
goes away.
*/
package pending
