// Package model defines the core data structures used throughout portsweep.
//
// This package contains the following main types:
//   - ScanRequest: The immutable description of one scan
//   - PortResult: The outcome of probing a single port
//   - ScanReport: The ordered collection of results produced by a scan
//
// Multiple packages (probe, scanner, report, database) share these types,
// so they live here to avoid import cycles.
//
// The models are serializable to JSON for report output and database storage.
package model
