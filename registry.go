package selector

import "github.com/mionet/selector/channel"

// channelEntry is one live connection's bookkeeping: the channel itself,
// its staged-receive FIFO, whether its non-blocking connect is still
// awaiting FinishConnect, and the logical interest set last requested
// for its fd (i.e. ignoring mute — see Selector.programmedInterest), so
// Mute/Unmute can toggle EventRead without forgetting whatever else
// (EventWrite, mid-connect) the poller is watching for.
//
// connectPending distinguishes "write-ready means the connect resolved"
// from "write-ready means the in-flight send may advance": a channel
// that is TCP-connected but still mid-handshake must not re-enter the
// connect phase when a send makes its fd write-ready.
// sendPending records that a send was queued and has not yet completed,
// so the write interest Send requested survives the connect phase's
// interest switch to read-ready.
type channelEntry struct {
	ch             channel.Channel
	staged         []channel.Receive
	connectPending bool
	sendPending    bool
	interest       IOEvent
}

// registry maps id -> channel and fd -> channel, kept as two maps over
// the same set of entries rather than one map plus an attachment pointer
// stashed in the poller — the fd itself is a stable token, so there's no
// need for an indirection arena.
type registry struct {
	byID map[string]*channelEntry
	byFD map[int]*channelEntry
}

func newRegistry() *registry {
	return &registry{
		byID: make(map[string]*channelEntry),
		byFD: make(map[int]*channelEntry),
	}
}

func (r *registry) has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *registry) insert(ch channel.Channel, connectPending bool) *channelEntry {
	e := &channelEntry{ch: ch, connectPending: connectPending}
	r.byID[ch.ID()] = e
	r.byFD[ch.FD()] = e
	return e
}

func (r *registry) byIDLookup(id string) (*channelEntry, bool) {
	e, ok := r.byID[id]
	return e, ok
}

func (r *registry) byFDLookup(fd int) (*channelEntry, bool) {
	e, ok := r.byFD[fd]
	return e, ok
}

// remove drops id from both maps and returns the entry, if any, so the
// caller can close its channel exactly once.
func (r *registry) remove(id string) (*channelEntry, bool) {
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	delete(r.byFD, e.ch.FD())
	return e, true
}

func (r *registry) ids() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}

func (r *registry) stageReceive(e *channelEntry, recv channel.Receive) {
	e.staged = append(e.staged, recv)
}

// results holds the per-poll accumulators: completed sends/receives,
// newly connected/disconnected ids, and the pending failedSends list
// merged into disconnected at the start of the next poll.
type results struct {
	completedSends    []channel.Send
	completedReceives []channel.Receive
	connected         []string
	disconnected      []string
	failedSends       []string
}

// clear is the poll-entry reset: the ids pending in failedSends (already
// closed, by Send) become this poll's opening disconnected list, and
// every other accumulator, plus the stale disconnected list left over
// from the previous poll, is wiped.
func (r *results) clear() {
	moved := r.failedSends
	r.failedSends = nil
	r.completedSends = nil
	r.completedReceives = nil
	r.connected = nil
	r.disconnected = moved
}
