/*
Package bus frames the typed message protocol between the host and the
extension runtime process.

Messages are newline-delimited JSON envelopes over the child process's
stdin and stdout. Each direction is FIFO: one writer goroutine serializes
outbound messages, one reader goroutine dispatches inbound messages in
arrival order. There is no retry; sending while no runtime is attached
fails immediately.

The Pipe transport connects two in-memory ends for tests, letting a
scripted goroutine stand in for the runtime process.
*/
package bus
