package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxBannerSize caps the number of banner bytes kept per port.
const MaxBannerSize = 200

// DefaultBannerProbe is written to every open port before reading its banner.
var DefaultBannerProbe = []byte("HEAD / HTTP/1.0\r\n\r\n")

type ProbeState uint8

const (
	StateIdle ProbeState = iota
	StateConnecting
	StateConnected
	StateBannerReading
	StateTimedOut
	StateConnectFailed
	StateUnreachable
	StateErrored
	StateDone
)

var probeStateNames = map[ProbeState]string{
	StateIdle:          "idle",
	StateConnecting:    "connecting",
	StateConnected:     "connected",
	StateBannerReading: "banner-reading",
	StateTimedOut:      "timed-out",
	StateConnectFailed: "connect-failed",
	StateUnreachable:   "unreachable",
	StateErrored:       "errored",
	StateDone:          "done",
}

func (s ProbeState) String() string {
	if name, ok := probeStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

var probeTransitions = map[ProbeState][]ProbeState{
	StateIdle:          {StateConnecting},
	StateConnecting:    {StateConnected, StateTimedOut, StateConnectFailed, StateUnreachable, StateErrored},
	StateConnected:     {StateBannerReading, StateDone},
	StateBannerReading: {StateDone},
	StateTimedOut:      {StateDone},
	StateConnectFailed: {StateDone},
	StateUnreachable:   {StateDone},
	StateErrored:       {StateDone},
}

// probeMachine tracks one port through a single probe. It is owned by the
// goroutine running the probe and reaches StateDone exactly once.
type probeMachine struct {
	port  Port
	state ProbeState
}

func (m *probeMachine) advance(to ProbeState) {
	for _, allowed := range probeTransitions[m.state] {
		if allowed == to {
			logrus.Tracef("port %d: %s -> %s", m.port, m.state, to)
			m.state = to
			return
		}
	}
	panic(fmt.Sprintf("scan: port %d: illegal probe transition %s -> %s", m.port, m.state, to))
}

func (m *probeMachine) finish(outcome Outcome) Outcome {
	m.advance(StateDone)
	return outcome
}

// Prober runs the connect-then-banner sequence against one target address.
// It holds no per-probe state, so a single Prober serves every worker.
type Prober struct {
	target         net.IP
	connectTimeout time.Duration
	bannerTimeout  time.Duration
	payload        []byte
	dial           func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewProber(cfg Config) *Prober {
	payload := cfg.BannerProbe
	if payload == nil {
		payload = DefaultBannerProbe
	}
	dialer := &net.Dialer{
		KeepAlive: -1,
	}
	return &Prober{
		target:         cfg.Target,
		connectTimeout: cfg.ConnectTimeout,
		bannerTimeout:  cfg.BannerTimeout,
		payload:        payload,
		dial:           dialer.DialContext,
	}
}

// Probe classifies a single port. It always returns within roughly
// connectTimeout + bannerTimeout and never leaves a connection open.
func (p *Prober) Probe(port Port) Outcome {
	m := &probeMachine{port: port}
	address := net.JoinHostPort(p.target.String(), port.String())

	m.advance(StateConnecting)
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), p.connectTimeout)
	conn, err := p.dial(ctx, "tcp", address)
	deadlineHit := errors.Is(ctx.Err(), context.DeadlineExceeded)
	// the dial has already resolved, so this is a no-op if the deadline fired
	cancel()
	latency := time.Since(start)

	if err != nil {
		next := classifyDialError(err, deadlineHit)
		m.advance(next)

		outcome := Outcome{Port: port, Latency: latency}
		switch next {
		case StateConnectFailed:
			outcome.State = PortClosed
		case StateErrored:
			outcome.State = PortErrored
			outcome.Reason = err.Error()
			logrus.Warnf("port %d: could not probe: %s", port, err)
		default:
			outcome.State = PortFiltered
		}
		logrus.Debugf("port %d: %s (%s)", port, outcome.State, err)
		return m.finish(outcome)
	}
	defer conn.Close()

	m.advance(StateConnected)
	banner := p.grabBanner(m, conn)
	return m.finish(Outcome{
		Port:    port,
		State:   PortOpen,
		Banner:  banner,
		Latency: latency,
	})
}

// grabBanner is best effort: any failure leaves the port open with no banner.
func (p *Prober) grabBanner(m *probeMachine, conn net.Conn) []byte {
	if p.bannerTimeout <= 0 {
		return nil
	}
	m.advance(StateBannerReading)

	if err := conn.SetDeadline(time.Now().Add(p.bannerTimeout)); err != nil {
		return nil
	}

	if len(p.payload) > 0 {
		if _, err := conn.Write(p.payload); err != nil {
			logrus.Debugf("port %d: banner probe write failed: %s", m.port, err)
			return nil
		}
	}

	// keep reading until the buffer is full, the peer hangs up or the deadline passes
	buf := make([]byte, MaxBannerSize)
	n, err := io.ReadFull(conn, buf)
	if n == 0 {
		logrus.Debugf("port %d: no banner: %v", m.port, err)
		return nil
	}
	return buf[:n]
}

// classifyDialError maps a failed dial onto the state it leaves Connecting for.
func classifyDialError(err error, deadlineHit bool) ProbeState {
	if isLocalResourceError(err) {
		return StateErrored
	}

	// the error the dial returned wins over a deadline that expired meanwhile
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return StateConnectFailed
	}

	if deadlineHit || errors.Is(err, context.DeadlineExceeded) {
		return StateTimedOut
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StateTimedOut
	}

	// no route, host unreachable and friends: nobody answered the handshake
	return StateUnreachable
}

// isLocalResourceError reports failures that happened on this machine before a
// single packet reached the target.
func isLocalResourceError(err error) bool {
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) && sysErr.Syscall == "socket" {
		return true
	}

	for _, errno := range []syscall.Errno{
		syscall.EMFILE,
		syscall.ENFILE,
		syscall.ENOBUFS,
		syscall.ENOMEM,
		syscall.EADDRNOTAVAIL,
		syscall.EADDRINUSE,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
