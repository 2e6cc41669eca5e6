package mqtt

import "log"

// pending is a serialized message waiting for the broker to come back.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog holds the newest messages published while disconnected,
// overwriting the oldest once full. Not safe for concurrent use.
type backlog struct {
	msgs    []pending
	next    int // slot for the next push
	n       int
	dropped int // messages overwritten since the last drain
}

func newBacklog(capacity int) *backlog {
	if capacity < 1 {
		capacity = 1
	}
	return &backlog{msgs: make([]pending, capacity)}
}

func (b *backlog) push(m pending) {
	if b.n == len(b.msgs) {
		if b.dropped == 0 {
			log.Printf("mqtt: backlog full (%d messages), dropping oldest", len(b.msgs))
		}
		b.dropped++
	} else {
		b.n++
	}
	b.msgs[b.next] = m
	b.next = (b.next + 1) % len(b.msgs)
}

// drain returns the held messages oldest first and empties the backlog.
func (b *backlog) drain() []pending {
	if b.n == 0 {
		return nil
	}
	out := make([]pending, 0, b.n)
	first := (b.next - b.n + len(b.msgs)) % len(b.msgs)
	for i := 0; i < b.n; i++ {
		out = append(out, b.msgs[(first+i)%len(b.msgs)])
	}
	if b.dropped > 0 {
		log.Printf("mqtt: %d messages were dropped while disconnected", b.dropped)
	}
	b.next, b.n, b.dropped = 0, 0, 0
	return out
}

func (b *backlog) len() int {
	return b.n
}
