package coreclient

import "sync"

// HostStatus is one row of the liveness table.
type HostStatus struct {
	Host  string
	Alive bool
}

type hostState struct {
	alive bool
	round uint64
}

// livenessTable records the last observed state of each host and the round it
// was observed in. Hosts that were never observed count as alive.
type livenessTable struct {
	mu    sync.RWMutex
	state map[string]hostState
}

func newLivenessTable() *livenessTable {
	return &livenessTable{state: make(map[string]hostState)}
}

// deadInRound reports whether host failed during round. A failure from an
// older round does not count.
func (t *livenessTable) deadInRound(host string, round uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.state[host]
	return ok && !s.alive && s.round == round
}

// mark records the outcome for host and reports whether its alive flag flipped.
func (t *livenessTable) mark(host string, round uint64, alive bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.state[host]
	t.state[host] = hostState{alive: alive, round: round}
	if !ok {
		return !alive
	}
	return prev.alive != alive
}

func (t *livenessTable) snapshot(hosts []string) []HostStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]HostStatus, len(hosts))
	for i, h := range hosts {
		s, ok := t.state[h]
		out[i] = HostStatus{Host: h, Alive: !ok || s.alive}
	}
	return out
}

func (t *livenessTable) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = make(map[string]hostState)
}

// pickHosts draws a ticket and returns the hosts this call may try, in order,
// along with the round the ticket belongs to.
func (c *Client) pickHosts() ([]string, uint64) {
	n := uint64(len(c.hosts))
	ticket := c.cursor.Add(1) - 1
	round, start := ticket/n, ticket%n

	ordered := make([]string, 0, n)
	for i := range n {
		ordered = append(ordered, c.hosts[(start+i)%n])
	}

	alive := make([]string, 0, n)
	for _, h := range ordered {
		if !c.liveness.deadInRound(h, round) {
			alive = append(alive, h)
		}
	}
	if len(alive) == 0 {
		c.logger.Warn("all core hosts marked dead, trying every host once", "hosts", len(ordered))
		return ordered, round
	}
	return alive, round
}
