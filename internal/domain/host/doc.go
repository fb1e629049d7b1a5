// Package host supervises the extension runtime process.
//
// The supervisor is an explicit state machine:
//
//	stopped -> starting -> ready
//	starting/ready -> degraded   (crash)
//	degraded -> starting         (scheduled restart)
//	any -> stopping -> stopped   (shutdown)
//
// Crash detection is process-exit based: any exit that happens while
// the shutdown flag is unset counts as a crash, increments the restart
// counter and schedules a respawn after a linear backoff. Once the
// counter passes the cap the supervisor stays degraded until an
// explicit Start resets it.
//
// Shutdown ordering matters: the flag is set before the restart timer
// is cancelled, so a timer firing concurrently can never resurrect a
// process that is being torn down.
package host
