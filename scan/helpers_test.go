package scan

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/phayes/freeport"
	"github.com/stretchr/testify/require"
)

var loopback = net.ParseIP("127.0.0.1")

// blackhole is a non-routable address: connects to it either hang until the
// deadline or fail with an unreachable error.
var blackhole = net.ParseIP("10.255.255.1")

// requireBlackhole skips the test unless connects to blackhole really hang
// until the deadline on this network.
func requireBlackhole(t *testing.T) {
	t.Helper()

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(blackhole.String(), "81"), 200*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		t.Skipf("%s accepts connections on this network", blackhole)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Skipf("%s does not time out on this network: %s", blackhole, err)
	}
}

// stallingDial never completes a handshake: it waits for the dial deadline and
// fails the way net.Dialer does when nothing answers.
func stallingDial(ctx context.Context, network, address string) (net.Conn, error) {
	<-ctx.Done()
	return nil, &net.OpError{Op: "dial", Net: network, Err: ctx.Err()}
}

// listen starts a loopback service that writes banner (if any) on every
// accepted connection and then holds it open until the client hangs up.
func listen(t *testing.T, banner []byte) Port {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				if len(banner) > 0 {
					if _, err := conn.Write(banner); err != nil {
						return
					}
				}
				_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
				_, _ = io.Copy(io.Discard, conn)
			}(conn)
		}
	}()

	return Port(l.Addr().(*net.TCPAddr).Port)
}

// listenSplit starts a loopback service that writes each chunk in turn with
// a pause between them, then holds the connection open.
func listenSplit(t *testing.T, pause time.Duration, chunks ...string) Port {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				for i, chunk := range chunks {
					if i > 0 {
						time.Sleep(pause)
					}
					if _, err := conn.Write([]byte(chunk)); err != nil {
						return
					}
				}
				_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
				_, _ = io.Copy(io.Discard, conn)
			}(conn)
		}
	}()

	return Port(l.Addr().(*net.TCPAddr).Port)
}

// closedPort returns a loopback port nothing is listening on.
func closedPort(t *testing.T) Port {
	t.Helper()

	port, err := freeport.GetFreePort()
	require.NoError(t, err)
	return Port(port)
}

func testConfig(target net.IP) Config {
	return Config{
		Target:         target,
		Workers:        10,
		ConnectTimeout: 500 * time.Millisecond,
		BannerTimeout:  150 * time.Millisecond,
	}
}
