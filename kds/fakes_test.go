package kds

import (
	"errors"
	"io"
	"sync"
)

type fakeClient struct {
	id string

	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closes  int
}

func newFakeClient(id string) *fakeClient { return &fakeClient{id: id} }

func (f *fakeClient) ID() string { return f.id }

func (f *fakeClient) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeClient) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func (f *fakeClient) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// fakeFrameConn feeds frames from a channel; closing the channel simulates a
// disconnect.
// Close also unblocks a pending ReadFrame, like closing a socket does.
type fakeFrameConn struct {
	*fakeClient
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeFrameConn(id string) *fakeFrameConn {
	return &fakeFrameConn{
		fakeClient: newFakeClient(id),
		frames:     make(chan []byte, 16),
		closed:     make(chan struct{}),
	}
}

func (f *fakeFrameConn) ReadFrame() ([]byte, error) {
	select {
	case data, ok := <-f.frames:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-f.closed:
		return nil, io.ErrClosedPipe
	}
}

func (f *fakeFrameConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return f.fakeClient.Close()
}

var errBrokenPipe = errors.New("broken pipe")
