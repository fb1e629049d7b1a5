// Package types provides shared data structures for the extension host.
//
// This package defines core types used across all host components,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - Manifest: Declarative descriptor bundled with every package
//   - Extension: Installed extension registry entry
//   - HostStatus: Supervisor runtime status snapshot
//   - Message: Frame on the runtime message channel
//   - Result: Standard operation result
//
// Request Types:
//   - InstallRequest, InstallFileRequest: Package installation
//   - KillRequest, PinRequest: Extension control
//
// State Management:
//   - ExtensionState: Extension lifecycle enum (installed, active, ...)
//   - Verification: Trust tier enum (verified, community, sideloaded)
//   - Category: Execution category enum (sandboxed, native)
//
// Example Usage:
//
//	ext := types.Extension{
//	    Manifest:     manifest,
//	    State:        types.StateInstalled,
//	    Verification: types.VerificationCommunity,
//	}
package types
