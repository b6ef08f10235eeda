// Package selector implements a non-blocking, single-threaded,
// multi-connection I/O multiplexer for TCP connections.
//
// # Architecture
//
// A [Selector] drives many TCP connections through one event-loop call,
// [Selector.Poll]. It initiates outbound connections ([Selector.Connect]),
// accepts registration of already-connected sockets ([Selector.Register]),
// queues size-delimited sends ([Selector.Send]), and surfaces completed
// sends, completed receives, newly connected and disconnected ids through
// per-poll result accessors. An idle reaper evicts connections that have
// been silent longer than a configured maximum, one per poll.
//
// # Platform Support
//
// Readiness polling is implemented using platform-native mechanisms:
//   - Linux: epoll
//   - Darwin/BSD: kqueue
//   - Windows: a WSAPoll-backed approximation
//
// See poller_linux.go, poller_darwin.go, and poller_windows.go.
//
// # Thread Safety
//
// The selector is intentionally NOT thread-safe: every method other than
// [Selector.Wakeup] must be called from a single owning goroutine (the
// "network thread"). [Selector.Wakeup] is the only method safe to call
// concurrently, and exists to unblock a concurrent [Selector.Poll].
//
// # Collaborators
//
// The byte-level framing codec, the pluggable transport layer, and the
// channel builder are external collaborators consumed through the
// interfaces in package channel. A concrete plaintext default
// (channel.PlaintextChannelBuilder) is provided so the selector can be
// exercised end-to-end without a caller supplying its own transport.
//
// # Usage
//
//	sel, err := selector.New(selector.WithChannelBuilder(channel.NewPlaintextChannelBuilder()))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sel.CloseAll()
//
//	if err := sel.Connect("peer-1", "127.0.0.1:9092", selector.UseDefaultBufferSize, selector.UseDefaultBufferSize); err != nil {
//		log.Fatal(err)
//	}
//
//	for {
//		if err := sel.Poll(500 * time.Millisecond); err != nil {
//			log.Fatal(err)
//		}
//		for _, id := range sel.Connected() {
//			fmt.Println("connected:", id)
//		}
//	}
package selector
