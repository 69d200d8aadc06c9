package server

import (
	"context"
	"net"
	"syscall"
	"time"
)

// Listen binds addr with SO_REUSEADDR set on the listening socket (§4.7),
// so a restarted parent can rebind immediately after a crash without
// waiting out TIME_WAIT.
func Listen(ctx context.Context, addr string) (*net.TCPListener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var setErr error
			if err := c.Control(func(fd uintptr) {
				setErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return setErr
		},
	}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return ln.(*net.TCPListener), nil
}

// noDelayListener wraps a *net.TCPListener to set TCP_NODELAY on every
// accepted connection and, if timeout > 0, a connection deadline (reads and
// writes, counted from accept) approximating SO_RCVTIMEO (§4.7) — Go
// doesn't expose raw socket timeout options on net.Listener, so a
// per-connection deadline is the idiomatic substitute.
type noDelayListener struct {
	*net.TCPListener
	timeout time.Duration
}

// WrapConnOptions returns a net.Listener applying the socket options from
// §4.7 (TCP_NODELAY always; a read/write deadline standing in for
// SO_RCVTIMEO when timeout > 0) to every connection accepted from ln.
func WrapConnOptions(ln *net.TCPListener, timeout time.Duration) net.Listener {
	return &noDelayListener{TCPListener: ln, timeout: timeout}
}

func (l *noDelayListener) Accept() (net.Conn, error) {
	c, err := l.TCPListener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	_ = c.SetNoDelay(true)
	if l.timeout > 0 {
		_ = c.SetDeadline(time.Now().Add(l.timeout))
	}
	return c, nil
}
