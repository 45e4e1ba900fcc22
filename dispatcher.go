package netsocket

import (
	"sync"

	"github.com/eapache/queue"
)

// dispatcher hands decoded packets to the dispatch callback on a dedicated
// goroutine, preserving arrival order. Enqueue happens under the receive
// buffer's lock and the single worker is the only drainer, so packets from
// one binding are never reordered or interleaved.
type dispatcher struct {
	mu       sync.Mutex
	cond     *sync.Cond
	q        *queue.Queue
	stopped  bool
	done     chan struct{}
	onPacket func(Packet)
}

func newDispatcher(onPacket func(Packet)) *dispatcher {
	d := &dispatcher{
		q:        queue.New(),
		done:     make(chan struct{}),
		onPacket: onPacket,
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// enqueue appends a packet for delivery. Packets enqueued after stop are
// dropped.
func (d *dispatcher) enqueue(p Packet) {
	d.mu.Lock()
	if !d.stopped {
		d.q.Add(p)
		d.cond.Signal()
	}
	d.mu.Unlock()
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for d.q.Length() == 0 && !d.stopped {
			d.cond.Wait()
		}
		if d.stopped {
			d.mu.Unlock()
			return
		}
		p := d.q.Remove().(Packet)
		d.mu.Unlock()

		d.onPacket(p)
	}
}

// stop halts delivery: the backlog is dropped and the worker exits, so no
// new packets reach the callback after the connection is torn down. A
// packet already inside the callback may still complete. It does not wait
// for the worker, so it is safe to call from a dispatch callback.
func (d *dispatcher) stop() {
	d.mu.Lock()
	d.stopped = true
	d.cond.Signal()
	d.mu.Unlock()
}
