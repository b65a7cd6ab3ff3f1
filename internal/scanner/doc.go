// Package scanner coordinates a port scan: it feeds the ports of a range to
// a bounded set of workers, collects exactly one result per port and builds
// the final report once every worker has finished.
package scanner
