// Package main provides the entry point for the portsweep CLI.
//
// portsweep is a concurrent TCP/UDP port scanner. It probes a range of ports
// on a single IPv4 host, reports each port as open, closed or filtered,
// grabs banners from open TCP services and keeps a local scan history.
//
// Usage:
//
//	portsweep scan --ip 192.0.2.10
//	portsweep scan -ip 192.0.2.10 -sp 1 -ep 1024 -proto tcp -t 200 -o result.txt
//	portsweep history 192.0.2.10 --compare
//
// See --help for all available options.
package main

func main() {
	Execute()
}
