package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/nao1215/portsweep/internal/model"
	"golang.org/x/net/proxy"
)

// quietLogger discards probe debug output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startTCPServer starts a listener on an ephemeral loopback port and runs
// handle for every accepted connection.
func startTCPServer(t *testing.T, handle func(conn net.Conn)) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handle(conn)
			}()
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

// closedTCPPort returns a loopback port that was just released.
func closedTCPPort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// httpResponder reads the request head and answers with a fixed response.
func httpResponder(response string) func(conn net.Conn) {
	return func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		_, _ = io.WriteString(conn, response)
	}
}

// TestExecutorTCP tests TCP probing against real loopback listeners.
func TestExecutorTCP(t *testing.T) {
	t.Parallel()

	t.Run("open port with banner", func(t *testing.T) {
		t.Parallel()

		port := startTCPServer(t, httpResponder("HTTP/1.1 200 OK\r\nServer: test\r\n\r\n"))
		services := NewServices()

		e := NewExecutor(WithLogger(quietLogger()), WithServices(services))
		result := e.Probe(context.Background(), "127.0.0.1", port, model.ProtocolTCP, time.Second)

		if result.Status != model.StatusOpen {
			t.Fatalf("expected open, got %v", result.Status)
		}
		if result.Port != port {
			t.Errorf("expected port %d, got %d", port, result.Port)
		}
		if result.Service != services.Lookup(port, model.ProtocolTCP) {
			t.Errorf("unexpected service label %q", result.Service)
		}
		if !strings.HasPrefix(result.Banner, "HTTP/1.1 200 OK") {
			t.Errorf("expected HTTP banner, got %q", result.Banner)
		}
	})

	t.Run("open port that never answers keeps open status", func(t *testing.T) {
		t.Parallel()

		port := startTCPServer(t, func(conn net.Conn) {
			_, _ = io.Copy(io.Discard, conn)
		})

		e := NewExecutor(WithLogger(quietLogger()))
		start := time.Now()
		result := e.Probe(context.Background(), "127.0.0.1", port, model.ProtocolTCP, 200*time.Millisecond)

		if result.Status != model.StatusOpen {
			t.Fatalf("expected open, got %v", result.Status)
		}
		if result.Banner != "" {
			t.Errorf("expected empty banner, got %q", result.Banner)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("banner read was not bounded by the timeout: %v", elapsed)
		}
	})

	t.Run("binary banner is dropped", func(t *testing.T) {
		t.Parallel()

		port := startTCPServer(t, func(conn net.Conn) {
			_, _ = conn.Write([]byte{0xff, 0xfe, 0xfd, 0x00})
		})

		e := NewExecutor(WithLogger(quietLogger()))
		result := e.Probe(context.Background(), "127.0.0.1", port, model.ProtocolTCP, time.Second)

		if result.Status != model.StatusOpen {
			t.Fatalf("expected open, got %v", result.Status)
		}
		if result.Banner != "" {
			t.Errorf("expected invalid UTF-8 to be dropped, got %q", result.Banner)
		}
	})

	t.Run("closed port is never open", func(t *testing.T) {
		t.Parallel()

		port := closedTCPPort(t)

		e := NewExecutor(WithLogger(quietLogger()))
		result := e.Probe(context.Background(), "127.0.0.1", port, model.ProtocolTCP, 500*time.Millisecond)

		if result.Status == model.StatusOpen {
			t.Fatalf("expected closed or filtered, got open")
		}
		if result.Service != "" || result.Banner != "" {
			t.Errorf("expected no service or banner, got %+v", result)
		}
	})

	t.Run("silent host terminates near the timeout", func(t *testing.T) {
		t.Parallel()

		e := NewExecutor(WithDialer(silentDialer{}), WithLogger(quietLogger()))
		timeout := 100 * time.Millisecond

		start := time.Now()
		result := e.Probe(context.Background(), "192.0.2.1", 81, model.ProtocolTCP, timeout)
		elapsed := time.Since(start)

		if result.Status != model.StatusFiltered {
			t.Errorf("expected filtered, got %s", result.Status)
		}
		if elapsed < timeout {
			t.Errorf("probe returned after %v, before the %v timeout", elapsed, timeout)
		}
		if elapsed > 5*timeout {
			t.Errorf("probe took %v, expected a small multiple of %v", elapsed, timeout)
		}
	})

	t.Run("cancelled context yields filtered", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		e := NewExecutor(WithLogger(quietLogger()))
		result := e.Probe(ctx, "127.0.0.1", closedTCPPort(t), model.ProtocolTCP, time.Second)

		if result.Status != model.StatusFiltered {
			t.Errorf("expected filtered, got %v", result.Status)
		}
	})
}

// TestExecutorUDP tests UDP probing modes.
func TestExecutorUDP(t *testing.T) {
	t.Parallel()

	t.Run("answering port is open", func(t *testing.T) {
		t.Parallel()

		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		if err != nil {
			t.Fatalf("listen udp: %v", err)
		}
		t.Cleanup(func() { _ = conn.Close() })
		port := conn.LocalAddr().(*net.UDPAddr).Port

		go func() {
			buf := make([]byte, 1500)
			n, raddr, err := conn.ReadFromUDP(buf)
			if err != nil || n == 0 {
				return
			}
			_, _ = conn.WriteToUDP([]byte("pong"), raddr)
		}()

		e := NewExecutor(WithLogger(quietLogger()))
		result := e.Probe(context.Background(), "127.0.0.1", port, model.ProtocolUDP, time.Second)

		if result.Status != model.StatusOpen {
			t.Errorf("expected open, got %v", result.Status)
		}
		if result.Banner != "" {
			t.Errorf("expected no banner for udp, got %q", result.Banner)
		}
	})

	t.Run("unused port is not open in probe mode", func(t *testing.T) {
		t.Parallel()

		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		if err != nil {
			t.Fatalf("listen udp: %v", err)
		}
		port := conn.LocalAddr().(*net.UDPAddr).Port
		_ = conn.Close()

		e := NewExecutor(WithLogger(quietLogger()))
		result := e.Probe(context.Background(), "127.0.0.1", port, model.ProtocolUDP, 300*time.Millisecond)

		if result.Status == model.StatusOpen {
			t.Errorf("expected closed or filtered, got open")
		}
	})

	t.Run("connect mode reports open without sending", func(t *testing.T) {
		t.Parallel()

		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		if err != nil {
			t.Fatalf("listen udp: %v", err)
		}
		port := conn.LocalAddr().(*net.UDPAddr).Port
		_ = conn.Close()

		services := NewServices()
		e := NewExecutor(WithLogger(quietLogger()), WithUDPMode(UDPModeConnect), WithServices(services))
		result := e.Probe(context.Background(), "127.0.0.1", port, model.ProtocolUDP, 300*time.Millisecond)

		if result.Status != model.StatusOpen {
			t.Errorf("expected open in connect mode, got %v", result.Status)
		}
		if result.Service != services.Lookup(port, model.ProtocolUDP) {
			t.Errorf("unexpected service %q", result.Service)
		}
	})
}

// TestBannerReader tests the banner reader in isolation over net.Pipe.
func TestBannerReader(t *testing.T) {
	t.Parallel()

	t.Run("sends the HTTP probe and returns the answer", func(t *testing.T) {
		t.Parallel()

		client, server := net.Pipe()
		defer client.Close()

		requestCh := make(chan string, 1)
		go func() {
			defer server.Close()
			buf := make([]byte, 256)
			n, _ := server.Read(buf)
			requestCh <- string(buf[:n])
			_, _ = server.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
		}()

		_ = client.SetDeadline(time.Now().Add(time.Second))
		banner, ok := NewBannerReader().Read(client, "192.0.2.10", 80)
		if !ok {
			t.Fatal("expected a banner")
		}
		if banner != "SSH-2.0-OpenSSH_9.6\r\n" {
			t.Errorf("unexpected banner %q", banner)
		}
		if got := <-requestCh; got != "GET / HTTP/1.1\r\nHost: 192.0.2.10\r\n\r\n" {
			t.Errorf("unexpected request %q", got)
		}
	})

	t.Run("read is bounded by the banner size", func(t *testing.T) {
		t.Parallel()

		client, server := net.Pipe()
		defer client.Close()

		go func() {
			defer server.Close()
			buf := make([]byte, 256)
			_, _ = server.Read(buf)
			_, _ = server.Write([]byte(strings.Repeat("a", 64)))
		}()

		_ = client.SetDeadline(time.Now().Add(time.Second))
		banner, ok := NewBannerReader(WithBannerSize(16)).Read(client, "127.0.0.1", 80)
		if !ok {
			t.Fatal("expected a banner")
		}
		if len(banner) != 16 {
			t.Errorf("expected 16 bytes, got %d", len(banner))
		}
	})

	t.Run("write failure yields no banner", func(t *testing.T) {
		t.Parallel()

		client, server := net.Pipe()
		_ = server.Close()
		defer client.Close()

		if banner, ok := NewBannerReader().Read(client, "127.0.0.1", 80); ok || banner != "" {
			t.Errorf("expected no banner, got %q (ok=%v)", banner, ok)
		}
	})

	t.Run("out of range port is rejected without writing", func(t *testing.T) {
		t.Parallel()

		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		if banner, ok := NewBannerReader().Read(client, "127.0.0.1", 0); ok || banner != "" {
			t.Errorf("expected no banner, got %q (ok=%v)", banner, ok)
		}
	})

	t.Run("silent peer yields no banner", func(t *testing.T) {
		t.Parallel()

		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		go func() {
			buf := make([]byte, 256)
			_, _ = server.Read(buf)
		}()

		_ = client.SetDeadline(time.Now().Add(100 * time.Millisecond))
		if banner, ok := NewBannerReader().Read(client, "127.0.0.1", 80); ok || banner != "" {
			t.Errorf("expected no banner, got %q (ok=%v)", banner, ok)
		}
	})
}

// timeoutError implements net.Error with Timeout() == true.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// TestClassifyError tests the mapping from transport errors to statuses.
func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want model.Status
	}{
		{
			name: "nil error is open",
			err:  nil,
			want: model.StatusOpen,
		},
		{
			name: "wrapped ECONNREFUSED is closed",
			err: &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{
				Syscall: "connect", Err: syscall.ECONNREFUSED,
			}},
			want: model.StatusClosed,
		},
		{
			name: "socks refusal text is closed",
			err:  errors.New("socks connect tcp 127.0.0.1:1080->10.0.0.1:22: unknown error connection refused"),
			want: model.StatusClosed,
		},
		{
			name: "net timeout is filtered",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: timeoutError{}},
			want: model.StatusFiltered,
		},
		{
			name: "context deadline is filtered",
			err:  fmt.Errorf("dial: %w", context.DeadlineExceeded),
			want: model.StatusFiltered,
		},
		{
			name: "host unreachable is filtered",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)},
			want: model.StatusFiltered,
		},
		{
			name: "unknown error is filtered",
			err:  errors.New("something odd"),
			want: model.StatusFiltered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, reason := classifyError(tt.err)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

// TestParseUDPMode tests UDP mode parsing.
func TestParseUDPMode(t *testing.T) {
	t.Parallel()

	if mode, err := ParseUDPMode("Probe"); err != nil || mode != UDPModeProbe {
		t.Errorf("expected probe, got %q (%v)", mode, err)
	}
	if mode, err := ParseUDPMode("connect"); err != nil || mode != UDPModeConnect {
		t.Errorf("expected connect, got %q (%v)", mode, err)
	}
	if _, err := ParseUDPMode("icmp"); !errors.Is(err, ErrInvalidUDPMode) {
		t.Errorf("expected ErrInvalidUDPMode, got %v", err)
	}
}

// TestNewDialer tests dialer construction.
func TestNewDialer(t *testing.T) {
	t.Parallel()

	t.Run("empty address dials directly", func(t *testing.T) {
		t.Parallel()

		d, err := NewDialer("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d != proxy.Direct {
			t.Errorf("expected proxy.Direct, got %T", d)
		}
	})

	t.Run("valid proxy address", func(t *testing.T) {
		t.Parallel()

		d, err := NewDialer("127.0.0.1:1080")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := d.(proxy.ContextDialer); !ok {
			t.Errorf("expected a context dialer, got %T", d)
		}
	})

	t.Run("invalid proxy addresses", func(t *testing.T) {
		t.Parallel()

		for _, addr := range []string{"localhost", "127.0.0.1:", ":1080", "127.0.0.1:0", "127.0.0.1:70000", "host:abc"} {
			if _, err := NewDialer(addr); !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("%q: expected ErrInvalidProxyAddress, got %v", addr, err)
			}
		}
	})
}

// silentDialer models a host that drops SYNs: every dial blocks until the
// context ends.
type silentDialer struct{}

func (silentDialer) Dial(network, address string) (net.Conn, error) {
	return silentDialer{}.DialContext(context.Background(), network, address)
}

func (silentDialer) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

var _ proxy.ContextDialer = silentDialer{}

// blockingDialer is a proxy.Dialer without DialContext that never returns
// until released.
type blockingDialer struct {
	release chan struct{}
}

func (d *blockingDialer) Dial(_, _ string) (net.Conn, error) {
	<-d.release
	return nil, errors.New("released")
}

// TestDialContextFallback tests cancellation of dialers without DialContext.
func TestDialContextFallback(t *testing.T) {
	t.Parallel()

	d := &blockingDialer{release: make(chan struct{})}
	defer close(d.release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := dialContext(ctx, d, "tcp", "127.0.0.1:1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

// TestResolveIPv4 tests target resolution.
func TestResolveIPv4(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		host    string
		want    string
		wantErr bool
	}{
		{name: "ipv4 literal", host: "192.0.2.5", want: "192.0.2.5"},
		{name: "ipv4-mapped literal", host: "::ffff:192.0.2.5", want: "192.0.2.5"},
		{name: "ipv6 literal", host: "2001:db8::1", wantErr: true},
		{name: "localhost", host: "localhost", want: "127.0.0.1"},
		{name: "invalid name", host: "no such host.invalid", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ResolveIPv4(context.Background(), tt.host)
			if tt.wantErr {
				if !errors.Is(err, ErrUnresolvableHost) {
					t.Errorf("expected ErrUnresolvableHost, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
