// Extension runtime sidecar.
//
// exthostd spawns this process and speaks newline-delimited JSON with
// it: commands arrive on stdin, events leave on stdout. Logs go to
// stderr so they never corrupt the frame stream.
//
// The process hosts one JavaScript VM per loaded sandboxed extension.
// VMs run with a stripped global scope, an eval time budget enforced by
// interrupt, and a blueprint host object for calls back into the host.
//
// Environment:
//
//	EXTRUNTIME_EVAL_BUDGET  - max wall time per eval (default 5s)
//	EXTRUNTIME_CALL_TIMEOUT - max wait for a host api reply (default 3s)
//	EXTRUNTIME_LOG_LEVEL    - stderr log level (default info)
//
// Not meant to be run by hand; the supervisor owns its lifecycle and
// restarts it on crash.
package main
