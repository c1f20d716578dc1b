// Package catalog serves the static reference data bundled into the binary:
// generic and make-specific maintenance schedules and upgrade education
// entries. Tools answer from it when the remote store is unreachable or has
// no row for the requested car.
//
// The data lives in data/*.yaml and is embedded at build time, so a Catalog
// never performs I/O after Load.
package catalog
