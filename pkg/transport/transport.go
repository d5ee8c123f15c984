// Package transport abstracts the push/pull sockets batches travel over.
//
// The default factory uses NNG through mangos, which is pure Go and supports
// tcp://, ipc:// and inproc:// addresses. Building with the zmq tag adds a
// ZeroMQ factory backed by libzmq.
package transport

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"time"
)

// Sentinel errors
var (
	ErrTimeout          = errors.New("transport timeout")
	ErrClosed           = errors.New("socket closed")
	ErrUnknownTransport = errors.New("unknown transport")
)

// Socket is a message socket. Implementations translate their library's
// timeout and closed errors to ErrTimeout and ErrClosed.
type Socket interface {
	io.Closer
	Send([]byte) error
	Recv() ([]byte, error)
	SetRecvDeadline(d time.Duration) error
	SetSendDeadline(d time.Duration) error
}

// ListenSocket is a socket that binds to an address.
type ListenSocket interface {
	Socket
	Listen(addr string) error
}

// DialSocket is a socket that connects to a remote address.
type DialSocket interface {
	Socket
	Dial(addr string) error
}

// SocketFactory creates the sockets used for batch delivery. Clients push,
// receivers pull.
type SocketFactory interface {
	Name() string
	NewPushSocket() (DialSocket, error)
	NewPullSocket() (ListenSocket, error)
}

// DefaultTransport is the factory used when none is configured
const DefaultTransport = "nng"

var (
	registryMu sync.RWMutex
	registry   = map[string]func() SocketFactory{
		DefaultTransport: func() SocketFactory { return NewNNGSocketFactory() },
	}
)

// Register makes a socket factory available under name.
func Register(name string, fn func() SocketFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// NewSocketFactory returns the factory registered under name. An empty name
// selects DefaultTransport.
func NewSocketFactory(name string) (SocketFactory, error) {
	if name == "" {
		name = DefaultTransport
	}

	registryMu.RLock()
	fn, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownTransport, name, Available())
	}
	return fn(), nil
}

// Available lists the registered transport names
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsAvailable reports whether name is registered
func IsAvailable(name string) bool {
	return slices.Contains(Available(), name)
}
