/*
Package runtime hosts extension VMs inside the extruntime child process.

# Overview

The extension host never executes extension code in its own process.
It spawns extruntime and speaks newline-delimited JSON frames over the
child's stdin/stdout; this package is the child's side of that channel.
Each loaded extension gets:

  - An isolated goja VM with a stripped global scope
  - A watchdog budget per eval, enforced by VM interrupt
  - Console capture forwarded into the structured log
  - A blueprint host object bridging api calls back to the host

# Architecture

One reader goroutine decodes host frames and dispatches them. Lifecycle
work (load, activate, deactivate) runs on a per-extension worker that
owns its VM, so a stuck extension stalls only itself. api:result frames
resolve the pending call a worker is blocked on; kill interrupts the VM
from outside and retires the worker.

# Security Model

Extension code cannot:
  - Reach the filesystem or network directly
  - See require, process, module or timers
  - Run past its eval budget without being interrupted

All host interactions go through blueprint.call, which the host process
validates per extension.

# Usage Example

	cfg, _ := runtime.LoadConfig()
	host := runtime.NewHost(os.Stdin, os.Stdout, cfg, logger)
	if err := host.Run(); err != nil {
		os.Exit(1)
	}
*/
package runtime
