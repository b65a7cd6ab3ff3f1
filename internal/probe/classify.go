package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/nao1215/portsweep/internal/model"
)

// classifyError maps a connect/send/receive error to a port status and a
// short reason used in debug logs.
//
// Only an explicit rejection counts as closed. Everything else, including
// host-unreachable replies, is filtered: the probe got no conclusive answer
// from the port itself.
func classifyError(err error) (model.Status, string) {
	if err == nil {
		return model.StatusOpen, "connected"
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return model.StatusClosed, "connection refused"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.StatusFiltered, "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.StatusFiltered, "timeout"
	}

	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return model.StatusFiltered, "unreachable"
	}

	// SOCKS5 replies and some platforms only expose the condition as text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "actively refused"):
		return model.StatusClosed, "connection refused"
	case strings.Contains(msg, "no route to host"),
		strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "host unreachable"):
		return model.StatusFiltered, "unreachable"
	}

	return model.StatusFiltered, err.Error()
}
