// Package portsource produces the ordered sequence of ports probed by a scan.
//
// A Range yields every port of an inclusive range exactly once, in
// ascending order, through a lazy iterator that can be restarted any number
// of times. It holds no mutable state, so any goroutine may iterate it; the
// scanner drains it into its own synchronized work queue.
package portsource
