package transport

import (
	"net"
	"time"

	"github.com/pion/transport/v3/test"
)

// Pipe returns a pair of in-memory, stream-oriented net.Conn endpoints
// backed by a pion test.Bridge, auto-ticking in a background goroutine
// so that writes on one side are observed as reads on the other
// without binding a real socket. Used by pkg/session's tests to drive
// the connection state machine without the cost or flakiness of
// loopback TCP.
//
// The returned close function stops the ticking goroutine and closes
// both endpoints; callers must call it exactly once.
func Pipe() (client, server net.Conn, closeFn func()) {
	bridge := test.NewBridge()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bridge.Tick()
			}
		}
	}()

	closeFn = func() {
		close(stop)
		<-done
		bridge.GetConn0().Close()
		bridge.GetConn1().Close()
	}

	return bridge.GetConn0(), bridge.GetConn1(), closeFn
}
