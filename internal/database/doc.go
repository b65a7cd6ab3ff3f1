// Package database provides SQLite-based scan history for portsweep.
//
// ScanDB stores every finished scan report as JSON together with its
// per-status counts, plus one row per open port so that later queries can
// find which targets exposed a given port. The driver is modernc.org/sqlite,
// a CGO-free implementation, so the binary cross-compiles without a C
// toolchain.
package database
