package writeclient

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dd0wney/cluso-graphwriter/pkg/transport"
)

// mockSocket records sent frames and replays queued ones on Recv.
type mockSocket struct {
	mu          sync.Mutex
	sent        [][]byte
	sendErrs    []error
	dialErr     error
	addr        string
	closed      bool
	recvTimeout time.Duration
	inbox       chan []byte
}

func newMockSocket() *mockSocket {
	return &mockSocket{inbox: make(chan []byte, 16), recvTimeout: 10 * time.Millisecond}
}

func (m *mockSocket) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return transport.ErrClosed
	}
	if len(m.sendErrs) > 0 {
		err := m.sendErrs[0]
		m.sendErrs = m.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	m.sent = append(m.sent, append([]byte(nil), data...))
	return nil
}

func (m *mockSocket) Recv() ([]byte, error) {
	m.mu.Lock()
	closed, timeout := m.closed, m.recvTimeout
	m.mu.Unlock()
	if closed {
		return nil, transport.ErrClosed
	}
	select {
	case data := <-m.inbox:
		return data, nil
	case <-time.After(timeout):
		return nil, transport.ErrTimeout
	}
}

func (m *mockSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSocket) SetRecvDeadline(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recvTimeout = d
	return nil
}

func (m *mockSocket) SetSendDeadline(time.Duration) error { return nil }

func (m *mockSocket) Dial(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dialErr != nil {
		return m.dialErr
	}
	m.addr = addr
	return nil
}

func (m *mockSocket) Listen(addr string) error {
	return m.Dial(addr)
}

func (m *mockSocket) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

func (m *mockSocket) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mockFactory hands out one shared mock socket.
type mockFactory struct {
	sock *mockSocket
	err  error
}

func (f *mockFactory) Name() string { return "mock" }

func (f *mockFactory) NewPushSocket() (transport.DialSocket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sock, nil
}

func (f *mockFactory) NewPullSocket() (transport.ListenSocket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sock, nil
}

var errFlaky = errors.New("flaky link")

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return -1
	}
	return m.GetGauge().GetValue()
}
