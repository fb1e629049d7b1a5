// Package paths defines the on-disk layout of the extensions root.
//
// Each installed extension occupies exactly one directory whose name is
// derived from the manifest id (dots become dashes). The directory holds
// the extracted package contents plus:
//
//	manifest.json   (fixed manifest location, same path as inside the archive)
//	install.json    (install time, version, trust tier, source)
//	.sideloaded     (zero-byte marker; presence is authoritative)
//	.storage/       (extension key-value storage)
//
// All components resolve extension paths through this package so the
// dot-to-dash transform stays in one place.
package paths
