// Package installer implements the extension package pipeline.
//
// Packages are .bpx archives (plain zip) with a manifest.json at the
// archive root. Install and sideload share one code path: fetch bytes,
// sniff the content type, validate the manifest, then extract. All
// validation happens before the first filesystem mutation, so a
// rejected package leaves the extensions root untouched.
//
// Reinstalling an ID removes the previous directory entirely before
// extraction and records the replaced version in install.json. The
// trust tier is decided by the source: store installs are community or
// verified (from store publisher metadata), file installs are always
// sideloaded and additionally marked with a .sideloaded file that the
// registry loader treats as authoritative.
//
// Native-category packages can only arrive through the store; the
// installer rejects them on the sideload path.
package installer
