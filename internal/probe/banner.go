package probe

import (
	"io"
	"net"

	"github.com/nao1215/portsweep/internal/model"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// DefaultBannerSize is the maximum number of bytes read for a banner.
const DefaultBannerSize = 1024

// BannerReader grabs a best-effort banner from an open TCP connection.
type BannerReader struct {
	// size bounds the single read.
	size int
}

// BannerOption configures a BannerReader.
type BannerOption func(*BannerReader)

// WithBannerSize sets the maximum banner size in bytes.
// Non-positive values keep the default.
func WithBannerSize(size int) BannerOption {
	return func(b *BannerReader) {
		if size > 0 {
			b.size = size
		}
	}
}

// NewBannerReader creates a BannerReader.
func NewBannerReader(opts ...BannerOption) *BannerReader {
	b := &BannerReader{size: DefaultBannerSize}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// httpProbe builds the request sent to every open port. The same request
// goes to SSH, SMTP or anything else; many services answer with a greeting
// or an error line that still identifies them.
func httpProbe(host string) string {
	return "GET / HTTP/1.1\r\nHost: " + host + "\r\n\r\n"
}

// Read sends the HTTP probe to host:port over conn and performs one bounded
// read. It relies on the deadline already set on conn. The second return
// value is false when the write fails, nothing arrives, or the bytes are not
// valid UTF-8 text.
func (b *BannerReader) Read(conn net.Conn, host string, port int) (string, bool) {
	if port < model.MinPort || port > model.MaxPort {
		return "", false
	}
	if _, err := io.WriteString(conn, httpProbe(host)); err != nil {
		return "", false
	}

	buf := make([]byte, b.size)
	n, _ := conn.Read(buf) //nolint:errcheck // a short read with an error still carries data
	if n == 0 {
		return "", false
	}

	text, _, err := transform.Bytes(encoding.UTF8Validator, buf[:n])
	if err != nil {
		return "", false
	}
	return string(text), true
}
