package selector

import (
	"net"
	"time"

	"github.com/mionet/selector/channel"
)

// ChannelBuilder constructs a channel.Channel for each new connection.
// Aliased here so callers only need to import the selector package for
// the common case.
type ChannelBuilder = channel.ChannelBuilder

// UseDefaultBufferSize leaves the OS default send/receive socket buffer
// size in place, for Connect's sendBuf/recvBuf arguments.
const UseDefaultBufferSize = -1

// Selector is a non-blocking, single-threaded, multi-connection I/O
// multiplexer. See the package doc for the full contract. It is not
// thread-safe except for Wakeup.
type Selector struct {
	cfg     *config
	poller  Poller
	reg     *registry
	lru     *idleLRU
	metrics *metrics
	logger  Logger

	results results

	immediatelyConnected []string

	currentTimeNanos       int64
	nextIdleCloseCheckTime int64

	closed bool
}

// New constructs a Selector. WithChannelBuilder is required; New returns
// an error if it was never supplied.
func New(opts ...Option) (*Selector, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.channelBuilder == nil {
		return nil, errNoChannelBuilder
	}
	poller, err := newPoller()
	if err != nil {
		return nil, err
	}
	s := &Selector{
		cfg:     cfg,
		poller:  poller,
		reg:     newRegistry(),
		lru:     newIdleLRU(),
		metrics: newMetrics(cfg),
		logger:  cfg.logger,
	}
	s.currentTimeNanos = cfg.clock().UnixNano()
	s.nextIdleCloseCheckTime = s.currentTimeNanos + int64(cfg.connectionMaxIdle)
	return s, nil
}

// Connect opens a non-blocking TCP connection to address under id.
// sendBufSize/recvBufSize may be UseDefaultBufferSize to leave OS
// defaults in place. Fails with ErrDuplicateID if id is already
// registered.
func (s *Selector) Connect(id, address string, sendBufSize, recvBufSize int) error {
	if s.closed {
		return ErrSelectorClosed
	}
	if s.reg.has(id) {
		return ErrDuplicateID
	}

	conn, immediate, err := dialNonblocking(address, sendBufSize, recvBufSize)
	if err != nil {
		return &ConnectError{ID: id, Address: address, Cause: err}
	}

	ch, err := buildConnectingChannel(s.cfg.channelBuilder, id, conn, s.cfg.maxReceiveSize)
	if err != nil {
		_ = conn.Close()
		return &ConnectError{ID: id, Address: address, Cause: err}
	}

	e := s.reg.insert(ch, true)
	if immediate {
		s.immediatelyConnected = append(s.immediatelyConnected, id)
		// Nothing reported ready yet; FinishConnect is simulated on the
		// next poll, which sets the real interest.
		if err := s.registerInterest(e, 0); err != nil {
			_ = ch.Close()
			s.reg.remove(id)
			return &ConnectError{ID: id, Address: address, Cause: err}
		}
	} else if err := s.registerInterest(e, EventWrite); err != nil {
		_ = ch.Close()
		s.reg.remove(id)
		return &ConnectError{ID: id, Address: address, Cause: err}
	}
	s.lru.Touch(id, s.clockTime())
	s.metrics.setConnectionCount(len(s.reg.byID))
	return nil
}

// Register adopts an already-connected socket (e.g. from a listener's
// Accept) under id. The caller guarantees id's uniqueness; there is no
// duplicate check.
func (s *Selector) Register(id string, conn net.Conn) error {
	if s.closed {
		return ErrSelectorClosed
	}
	ch, err := s.cfg.channelBuilder.BuildChannel(id, conn, s.cfg.maxReceiveSize)
	if err != nil {
		return err
	}
	e := s.reg.insert(ch, false)
	if err := s.registerInterest(e, EventRead); err != nil {
		_ = ch.Close()
		s.reg.remove(id)
		return err
	}
	s.lru.Touch(id, s.clockTime())
	s.metrics.connectionCreated()
	s.metrics.setConnectionCount(len(s.reg.byID))
	return nil
}

// Send queues send for delivery on its destination channel. Fails with
// ErrNoSuchConnection if the destination is unknown, or with whatever
// error the channel's SetSend reports (e.g. a send already in flight).
func (s *Selector) Send(send channel.Send) error {
	if s.closed {
		return ErrSelectorClosed
	}
	id := send.Destination()
	e, ok := s.reg.byIDLookup(id)
	if !ok {
		return ErrNoSuchConnection
	}
	if err := e.ch.SetSend(send); err != nil {
		// The channel rejected the send for its own reasons (e.g. one
		// already in flight); that's returned to the caller directly,
		// not treated as a cancelled-key failure.
		return err
	}
	e.sendPending = true
	if err := s.modifyInterest(e, e.interest|EventWrite); err != nil {
		// The key was cancelled between lookup and set: recorded as a
		// failed send rather than returned synchronously; the id surfaces
		// through Disconnected at the next poll boundary.
		s.destroyChannel(id)
		s.results.failedSends = append(s.results.failedSends, id)
	}
	return nil
}

// Poll drives every connection through one iteration: dispatches ready
// keys, drains staged receives, and reaps at most one idle connection.
// timeout<0 is an error; 0 returns immediately; otherwise it blocks for
// at most timeout.
func (s *Selector) Poll(timeout time.Duration) error {
	if s.closed {
		return ErrSelectorClosed
	}
	if timeout < 0 {
		return ErrInvalidTimeout
	}

	// 1. Clear.
	s.results.clear()

	// 2. Timeout collapse.
	timeoutMs := int(timeout / time.Millisecond)
	if len(s.immediatelyConnected) > 0 || s.hasUnmutedStagedReceives() {
		timeoutMs = 0
	}

	// 3. Select.
	selectStart := s.cfg.clock()
	ready, err := s.poller.Select(timeoutMs)
	s.metrics.selectTime(s.cfg.clock().Sub(selectStart))
	s.currentTimeNanos = s.cfg.clock().UnixNano()
	if err != nil {
		return err
	}

	ioStart := s.cfg.clock()

	// 4. Dispatch ready keys, then simulated immediate connects.
	for _, rk := range ready {
		e, ok := s.reg.byFDLookup(rk.FD)
		if !ok {
			continue
		}
		s.dispatch(e, rk.Events, false)
	}
	immediate := s.immediatelyConnected
	s.immediatelyConnected = nil
	for _, id := range immediate {
		e, ok := s.reg.byIDLookup(id)
		if !ok {
			continue
		}
		s.dispatch(e, 0, true)
	}

	// 5. Drain staged receives.
	s.drainStagedReceives()

	// 6. io-time sensor.
	s.metrics.ioTime(s.cfg.clock().Sub(ioStart))

	// 7. Idle reap.
	s.reapIdle()

	return nil
}

// hasUnmutedStagedReceives reports whether any non-muted channel has a
// staged receive waiting, which collapses the next select's timeout to
// zero so buffered progress is never left behind blocking.
func (s *Selector) hasUnmutedStagedReceives() bool {
	for _, e := range s.reg.byID {
		if len(e.staged) > 0 && !e.ch.IsMute() {
			return true
		}
	}
	return false
}

// dispatch runs one key through the connect/handshake/read/write/validity
// pipeline. immediatelyConnected is true for keys drained from the
// immediate-connect set rather than returned by Select.
func (s *Selector) dispatch(e *channelEntry, events IOEvent, immediatelyConnected bool) {
	id := e.ch.ID()
	s.metrics.perConnectionFor(id)
	s.lru.Touch(id, s.clockTime())

	if err := s.dispatchStep(e, events, immediatelyConnected); err != nil {
		stage := "finish"
		if ce, ok := err.(*ChannelError); ok {
			stage = ce.Stage
		}
		logPollError(s.logger, id, stage, err)
		s.closeAndDisconnect(id)
	}
}

func (s *Selector) dispatchStep(e *channelEntry, events IOEvent, immediatelyConnected bool) error {
	ch := e.ch

	// Connect phase. Gated on connectPending, not Ready(): once the TCP
	// connect has resolved, a later write-ready event (from a queued
	// send) must not re-run FinishConnect even if a transport handshake
	// is still keeping Ready() false.
	if e.connectPending && (immediatelyConnected || events&EventWrite != 0) {
		ok, err := ch.FinishConnect()
		if err != nil {
			return &ChannelError{ID: ch.ID(), Stage: "connect", Cause: err}
		}
		if !ok {
			return nil
		}
		e.connectPending = false
		s.results.connected = append(s.results.connected, ch.ID())
		s.metrics.connectionCreated()
		// Switch interest from connect-ready to read-ready, keeping any
		// write interest a send queued before the connect resolved.
		interest := EventRead
		if e.sendPending {
			interest |= EventWrite
		}
		if err := s.modifyInterest(e, interest); err != nil {
			return &ChannelError{ID: ch.ID(), Stage: "connect", Cause: err}
		}
	}

	// Handshake phase: only once the TCP connect has resolved.
	if !e.connectPending && !ch.Ready() {
		if err := ch.Prepare(); err != nil {
			return &ChannelError{ID: ch.ID(), Stage: "connect", Cause: err}
		}
		if !ch.Ready() {
			return nil
		}
	}

	// Read phase: drain every complete frame a single readiness
	// notification may have delivered.
	if ch.Ready() && events&EventRead != 0 && len(e.staged) == 0 {
		for {
			recv, err := ch.Read()
			if err != nil {
				return &ChannelError{ID: ch.ID(), Stage: "read", Cause: err}
			}
			if recv == nil {
				break
			}
			s.reg.stageReceive(e, recv)
		}
	}

	// Write phase.
	if ch.Ready() && events&EventWrite != 0 {
		send, err := ch.Write()
		if err != nil {
			return &ChannelError{ID: ch.ID(), Stage: "write", Cause: err}
		}
		if send != nil {
			e.sendPending = false
			s.results.completedSends = append(s.results.completedSends, send)
			s.metrics.bytesSent(ch.ID(), sendSize(send))
			if err := s.modifyInterest(e, e.interest&^EventWrite); err != nil {
				return &ChannelError{ID: ch.ID(), Stage: "write", Cause: err}
			}
		}
	}

	// Invalidity check: a hangup or error condition on the key closes the
	// channel even if reads/writes above made progress this pass.
	if events&(EventError|EventHangup) != 0 {
		return &ChannelError{ID: ch.ID(), Stage: "finish", Cause: errKeyInvalid}
	}

	return nil
}

// drainStagedReceives moves one receive per non-muted channel with a
// non-empty deque into completedReceives.
func (s *Selector) drainStagedReceives() {
	for id, e := range s.reg.byID {
		if len(e.staged) == 0 || e.ch.IsMute() {
			continue
		}
		recv := e.staged[0]
		e.staged = e.staged[1:]
		s.results.completedReceives = append(s.results.completedReceives, recv)
		s.metrics.bytesReceived(id, len(recv.Payload()))
	}
}

// reapIdle is the amortized idle-close check: at most one connection is
// closed per poll, regardless of how many have gone idle.
func (s *Selector) reapIdle() {
	if s.cfg.connectionMaxIdle <= 0 {
		return
	}
	if s.currentTimeNanos <= s.nextIdleCloseCheckTime {
		return
	}
	id, lastActive, ok := s.lru.Oldest()
	if !ok {
		s.nextIdleCloseCheckTime = s.currentTimeNanos + int64(s.cfg.connectionMaxIdle)
		return
	}
	deadline := lastActive.UnixNano() + int64(s.cfg.connectionMaxIdle)
	s.nextIdleCloseCheckTime = deadline
	if s.currentTimeNanos > deadline {
		s.closeAndDisconnect(id)
	}
}

// destroyChannel tears down id's channel and bookkeeping (if still
// registered) without touching the result buffers; callers decide
// whether the id lands in disconnected now or in failedSends for the
// next poll. Returns false if id was not registered.
func (s *Selector) destroyChannel(id string) bool {
	e, ok := s.reg.remove(id)
	if !ok {
		return false
	}
	_ = s.poller.Deregister(e.ch.FD())
	_ = e.ch.Close()
	s.lru.Remove(id)
	s.metrics.connectionClosed()
	s.metrics.forget(id)
	s.metrics.setConnectionCount(len(s.reg.byID))
	return true
}

// closeAndDisconnect closes id's channel (if still registered) and
// records it in disconnected, exactly once.
func (s *Selector) closeAndDisconnect(id string) {
	if s.destroyChannel(id) {
		s.results.disconnected = append(s.results.disconnected, id)
	}
}

// Mute suspends receive delivery for id until Unmute. Beyond flipping
// the channel's mute flag, it drops EventRead interest on the fd so a
// level-triggered poller stops reporting the socket ready while its
// unread bytes sit unconsumed.
func (s *Selector) Mute(id string) error {
	e, ok := s.reg.byIDLookup(id)
	if !ok {
		return ErrNoSuchConnection
	}
	e.ch.Mute()
	return s.refreshInterest(e)
}

// Unmute reverses Mute, restoring EventRead interest on the fd.
func (s *Selector) Unmute(id string) error {
	e, ok := s.reg.byIDLookup(id)
	if !ok {
		return ErrNoSuchConnection
	}
	e.ch.Unmute()
	return s.refreshInterest(e)
}

// MuteAll mutes every live connection. Poller errors are ignored per
// connection, matching the bulk, best-effort nature of the operation;
// a connection the poller rejects is still marked muted at the channel
// level and will simply stay off the busy-spin path once it's reaped.
func (s *Selector) MuteAll() {
	for _, e := range s.reg.byID {
		e.ch.Mute()
		_ = s.refreshInterest(e)
	}
}

// UnmuteAll unmutes every live connection.
func (s *Selector) UnmuteAll() {
	for _, e := range s.reg.byID {
		e.ch.Unmute()
		_ = s.refreshInterest(e)
	}
}

// programmedInterest computes the interest set actually pushed to the
// poller: the logical interest last requested, minus EventRead while the
// channel is muted. IsMute is consulted on every call rather than cached
// so Mute/Unmute need only touch the poller once, not re-derive it from
// the channel.
func (s *Selector) programmedInterest(e *channelEntry) IOEvent {
	if e.ch.IsMute() {
		return e.interest &^ EventRead
	}
	return e.interest
}

// registerInterest records logical as e's interest set and registers the
// fd with the poller using the mute-adjusted programmed interest.
func (s *Selector) registerInterest(e *channelEntry, logical IOEvent) error {
	e.interest = logical
	return s.poller.Register(e.ch.FD(), s.programmedInterest(e))
}

// modifyInterest records logical as e's interest set and pushes the
// mute-adjusted programmed interest to the poller.
func (s *Selector) modifyInterest(e *channelEntry, logical IOEvent) error {
	e.interest = logical
	return s.poller.Modify(e.ch.FD(), s.programmedInterest(e))
}

// refreshInterest re-pushes e's current logical interest to the poller
// after e.ch's mute state changed, without altering the logical interest
// itself.
func (s *Selector) refreshInterest(e *channelEntry) error {
	return s.poller.Modify(e.ch.FD(), s.programmedInterest(e))
}

// Wakeup unblocks a concurrent Poll call. The only method safe to call
// from a goroutine other than the one driving Poll.
func (s *Selector) Wakeup() {
	s.poller.Wakeup()
}

// Close closes one connection. Idempotent: an unknown id is a no-op.
func (s *Selector) Close(id string) {
	s.closeAndDisconnect(id)
}

// CloseAll closes every live connection, the poller, and the channel
// builder, then tears down metrics. The selector is unusable afterward.
func (s *Selector) CloseAll() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for _, id := range s.reg.ids() {
		s.closeAndDisconnect(id)
	}
	err := s.poller.Close()
	if bErr := s.cfg.channelBuilder.Close(); bErr != nil && err == nil {
		err = bErr
	}
	s.metrics.close()
	return err
}

// CompletedSends returns sends that finished writing during the most
// recent Poll. Valid until the next Poll call.
func (s *Selector) CompletedSends() []channel.Send { return s.results.completedSends }

// CompletedReceives returns receives drained during the most recent
// Poll. Valid until the next Poll call.
func (s *Selector) CompletedReceives() []channel.Receive { return s.results.completedReceives }

// Connected returns ids whose connect finished during the most recent
// Poll. Valid until the next Poll call.
func (s *Selector) Connected() []string { return s.results.connected }

// Disconnected returns ids that were closed during the most recent Poll,
// including any failed sends recorded since the previous Poll, plus ids
// closed through Close or CloseAll since that Poll returned. Valid until
// the next Poll call.
func (s *Selector) Disconnected() []string { return s.results.disconnected }

// Channel returns the channel registered under id, if any.
func (s *Selector) Channel(id string) (channel.Channel, bool) {
	e, ok := s.reg.byIDLookup(id)
	if !ok {
		return nil, false
	}
	return e.ch, true
}

// Channels returns every currently live connection id.
func (s *Selector) Channels() []string { return s.reg.ids() }

// IsChannelReady reports whether id's channel may currently carry
// application data.
func (s *Selector) IsChannelReady(id string) bool {
	e, ok := s.reg.byIDLookup(id)
	return ok && e.ch.Ready()
}

func (s *Selector) clockTime() time.Time { return s.cfg.clock() }

// buildConnectingChannel uses the ConnectingChannelBuilder refinement
// when the configured builder implements it, since the Connect path's
// socket may still have a connect in flight; otherwise it falls back to
// the base contract.
func buildConnectingChannel(b ChannelBuilder, id string, conn net.Conn, maxReceiveSize int) (channel.Channel, error) {
	if cb, ok := b.(channel.ConnectingChannelBuilder); ok {
		return cb.BuildConnectingChannel(id, conn, maxReceiveSize)
	}
	return b.BuildChannel(id, conn, maxReceiveSize)
}

// sendSize recovers a byte count from a completed Send for metrics. Sends
// that don't expose one (a custom Send type outside channel.NetworkSend)
// report zero rather than panicking.
func sendSize(send channel.Send) int {
	type sized interface{ Size() int }
	if s, ok := send.(sized); ok {
		return s.Size()
	}
	return 0
}
