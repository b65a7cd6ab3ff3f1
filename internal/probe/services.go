package probe

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/nao1215/portsweep/internal/model"
)

// systemServicesPath is the IANA service table shipped by most Unix systems.
const systemServicesPath = "/etc/services"

type serviceKey struct {
	port  int
	proto model.Protocol
}

// Services maps (port, protocol) pairs to well-known service names.
// A Services value is read-only after construction and safe for concurrent use.
type Services struct {
	names map[serviceKey]string
}

// builtinServices covers common ports on systems without /etc/services.
var builtinServices = map[int]string{
	7:     "echo",
	20:    "ftp-data",
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "domain",
	67:    "bootps",
	68:    "bootpc",
	69:    "tftp",
	80:    "http",
	88:    "kerberos",
	110:   "pop3",
	111:   "sunrpc",
	119:   "nntp",
	123:   "ntp",
	135:   "epmap",
	137:   "netbios-ns",
	138:   "netbios-dgm",
	139:   "netbios-ssn",
	143:   "imap2",
	161:   "snmp",
	162:   "snmp-trap",
	179:   "bgp",
	389:   "ldap",
	443:   "https",
	445:   "microsoft-ds",
	465:   "submissions",
	500:   "isakmp",
	514:   "syslog",
	515:   "printer",
	587:   "submission",
	631:   "ipp",
	636:   "ldaps",
	873:   "rsync",
	993:   "imaps",
	995:   "pop3s",
	1080:  "socks",
	1433:  "ms-sql-s",
	1434:  "ms-sql-m",
	1521:  "oracle",
	1723:  "pptp",
	1883:  "mqtt",
	2049:  "nfs",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	5060:  "sip",
	5222:  "xmpp-client",
	5432:  "postgresql",
	5672:  "amqp",
	5900:  "vnc",
	6379:  "redis",
	6667:  "ircd",
	8080:  "http-alt",
	8443:  "https-alt",
	9050:  "tor-socks",
	9200:  "elasticsearch",
	11211: "memcache",
	27017: "mongodb",
}

// NewServices returns the built-in table for both protocols.
func NewServices() *Services {
	s := &Services{names: make(map[serviceKey]string, len(builtinServices)*2)}
	for port, name := range builtinServices {
		s.names[serviceKey{port, model.ProtocolTCP}] = name
		s.names[serviceKey{port, model.ProtocolUDP}] = name
	}
	return s
}

// ParseServices reads a table in /etc/services format:
//
//	name  port/protocol  [aliases...]  [# comment]
//
// Malformed lines are skipped. Entries for protocols other than tcp and udp
// are ignored. The first entry for a (port, protocol) pair wins.
func ParseServices(r io.Reader) (*Services, error) {
	s := &Services{names: make(map[serviceKey]string)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		portStr, protoStr, ok := strings.Cut(fields[1], "/")
		if !ok {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < model.MinPort || port > model.MaxPort {
			continue
		}
		proto, err := model.ParseProtocol(protoStr)
		if err != nil {
			continue
		}

		key := serviceKey{port, proto}
		if _, exists := s.names[key]; !exists {
			s.names[key] = fields[0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Merge returns a table holding the entries of s, with entries of other
// added where s has none.
func (s *Services) Merge(other *Services) *Services {
	merged := &Services{names: make(map[serviceKey]string, len(s.names)+len(other.names))}
	for k, v := range other.names {
		merged.names[k] = v
	}
	for k, v := range s.names {
		merged.names[k] = v
	}
	return merged
}

// Lookup returns the service name for port/proto, or "" when unknown.
func (s *Services) Lookup(port int, proto model.Protocol) string {
	if s == nil {
		return ""
	}
	return s.names[serviceKey{port, proto}]
}

// Len returns the number of entries in the table.
func (s *Services) Len() int {
	return len(s.names)
}

var (
	systemServicesOnce sync.Once
	systemServices     *Services
)

// SystemServices returns the system table merged over the built-in one.
// The system file is read once per process; when it is missing or
// unreadable only the built-in table is used.
func SystemServices() *Services {
	systemServicesOnce.Do(func() {
		builtin := NewServices()
		systemServices = builtin

		f, err := os.Open(systemServicesPath)
		if err != nil {
			return
		}
		defer f.Close()

		parsed, err := ParseServices(f)
		if err != nil {
			return
		}
		systemServices = parsed.Merge(builtin)
	})
	return systemServices
}
