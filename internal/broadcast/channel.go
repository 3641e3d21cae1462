package broadcast

import "sync/atomic"

type subscribeReq struct {
	draftID string
	ch      chan Event
}

type unsubscribeReq struct {
	draftID string
	ch      chan Event
}

// ChannelBroker is the in-process broker. A single event loop owns the
// subscriber map, so public methods need no mutex; they talk to the loop
// through channels.
type ChannelBroker struct {
	subscribeCh   chan subscribeReq
	unsubscribeCh chan unsubscribeReq
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

func NewChannelBroker() *ChannelBroker {
	b := &ChannelBroker{
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan unsubscribeReq),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *ChannelBroker) run() {
	defer close(b.stopped)

	subscribers := make(map[string]map[chan Event]struct{})

	for {
		select {
		case <-b.stopCh:
			for _, listeners := range subscribers {
				for ch := range listeners {
					close(ch)
				}
			}
			return

		case req := <-b.subscribeCh:
			listeners, ok := subscribers[req.draftID]
			if !ok {
				listeners = make(map[chan Event]struct{})
				subscribers[req.draftID] = listeners
			}
			listeners[req.ch] = struct{}{}

		case req := <-b.unsubscribeCh:
			if listeners, ok := subscribers[req.draftID]; ok {
				if _, member := listeners[req.ch]; member {
					delete(listeners, req.ch)
					close(req.ch)
				}
				if len(listeners) == 0 {
					delete(subscribers, req.draftID)
				}
			}

		case event := <-b.publishCh:
			for ch := range subscribers[event.DraftID] {
				select {
				case ch <- event:
				default:
					// Listener buffer full; drop rather than block the loop.
				}
			}

		case resp := <-b.countReqCh:
			total := 0
			for _, listeners := range subscribers {
				total += len(listeners)
			}
			resp <- total
		}
	}
}

// Subscribe registers a listener for one draft's events.
func (b *ChannelBroker) Subscribe(draftID string) *Subscription {
	ch := make(chan Event, 64)
	if b.closed.Load() {
		close(ch)
		return &Subscription{C: ch}
	}

	select {
	case b.subscribeCh <- subscribeReq{draftID: draftID, ch: ch}:
	case <-b.stopped:
		close(ch)
		return &Subscription{C: ch}
	}

	return &Subscription{
		C: ch,
		cancel: func() {
			select {
			case b.unsubscribeCh <- unsubscribeReq{draftID: draftID, ch: ch}:
			case <-b.stopped:
			}
		},
	}
}

// Publish delivers an event to every listener on its draft.
func (b *ChannelBroker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// SubscriberCount returns the number of open subscriptions across drafts.
func (b *ChannelBroker) SubscriberCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Close stops the event loop and closes every subscriber channel.
func (b *ChannelBroker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}
