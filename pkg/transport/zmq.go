//go:build zmq
// +build zmq

package transport

import (
	"fmt"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
)

func init() {
	Register("zmq", func() SocketFactory { return NewZMQSocketFactory() })
}

// zmqSocket wraps a ZeroMQ socket. Linger is zero so Close never blocks on
// undelivered frames.
type zmqSocket struct {
	sock *zmq.Socket
}

func newZMQSocket(t zmq.Type) (*zmqSocket, error) {
	sock, err := zmq.NewSocket(t)
	if err != nil {
		return nil, fmt.Errorf("failed to create %v socket: %w", t, err)
	}
	if err := sock.SetLinger(0); err != nil {
		sock.Close()
		return nil, err
	}
	return &zmqSocket{sock: sock}, nil
}

func (s *zmqSocket) Send(data []byte) error {
	_, err := s.sock.SendBytes(data, 0)
	return zmqError(err)
}

func (s *zmqSocket) Recv() ([]byte, error) {
	data, err := s.sock.RecvBytes(0)
	return data, zmqError(err)
}

func (s *zmqSocket) Close() error {
	return s.sock.Close()
}

func (s *zmqSocket) SetRecvDeadline(d time.Duration) error {
	return s.sock.SetRcvtimeo(d)
}

func (s *zmqSocket) SetSendDeadline(d time.Duration) error {
	return s.sock.SetSndtimeo(d)
}

func (s *zmqSocket) Listen(addr string) error {
	return s.sock.Bind(addr)
}

func (s *zmqSocket) Dial(addr string) error {
	return s.sock.Connect(addr)
}

func zmqError(err error) error {
	if err == nil {
		return nil
	}
	switch zmq.AsErrno(err) {
	case zmq.Errno(syscall.EAGAIN):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case zmq.ETERM, zmq.Errno(syscall.ENOTSOCK):
		return ErrClosed
	}
	return err
}

// ZMQSocketFactory creates ZeroMQ sockets.
type ZMQSocketFactory struct{}

// NewZMQSocketFactory creates a new ZeroMQ socket factory.
func NewZMQSocketFactory() *ZMQSocketFactory {
	return &ZMQSocketFactory{}
}

func (f *ZMQSocketFactory) Name() string { return "zmq" }

func (f *ZMQSocketFactory) NewPushSocket() (DialSocket, error) {
	return newZMQSocket(zmq.PUSH)
}

func (f *ZMQSocketFactory) NewPullSocket() (ListenSocket, error) {
	return newZMQSocket(zmq.PULL)
}

var _ SocketFactory = (*ZMQSocketFactory)(nil)
