package session

import (
	"sync"
)

// ChangeKind identifies what part of the session changed.
type ChangeKind int

const (
	// ChangeStatus indicates the status line changed.
	ChangeStatus ChangeKind = iota

	// ChangeMode indicates the session moved between idle, recording and
	// playing.
	ChangeMode

	// ChangeTimeline indicates rows were added, removed or replaced.
	ChangeTimeline

	// ChangeSelection indicates the selected row changed.
	ChangeSelection

	// ChangeActiveRow indicates playback advanced to another row.
	ChangeActiveRow
)

// String returns the change kind name.
func (k ChangeKind) String() string {
	switch k {
	case ChangeStatus:
		return "status"
	case ChangeMode:
		return "mode"
	case ChangeTimeline:
		return "timeline"
	case ChangeSelection:
		return "selection"
	case ChangeActiveRow:
		return "active_row"
	default:
		return "unknown"
	}
}

// Change describes one session change.
type Change struct {
	Kind ChangeKind

	// Old and New hold the previous and current value: a string for status,
	// a Mode for mode, an int row index for selection and active row, and
	// the row count for timeline changes.
	Old any
	New any
}

// Observer is called when the session changes.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// Notifier fans session changes out to observers.
type Notifier struct {
	mu sync.RWMutex

	// Observers that receive every change
	globalObservers map[uint64]Observer

	// Observers of a single kind
	kindObservers map[ChangeKind]map[uint64]Observer

	nextID uint64

	async  bool
	buffer chan Change
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithAsync delivers changes from a background goroutine through a buffer
// of the given size.
func WithAsync(bufferSize int) NotifierOption {
	return func(n *Notifier) {
		if bufferSize > 0 {
			n.async = true
			n.buffer = make(chan Change, bufferSize)
		}
	}
}

// NewNotifier creates a new Notifier.
func NewNotifier(opts ...NotifierOption) *Notifier {
	n := &Notifier{
		globalObservers: make(map[uint64]Observer),
		kindObservers:   make(map[ChangeKind]map[uint64]Observer),
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.async {
		n.wg.Add(1)
		go n.processAsync()
	}

	return n
}

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.globalObservers[id] = observer

	return &Subscription{id: id, notifier: n}
}

// SubscribeKind registers an observer for changes of one kind.
func (n *Notifier) SubscribeKind(kind ChangeKind, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	if n.kindObservers[kind] == nil {
		n.kindObservers[kind] = make(map[uint64]Observer)
	}
	n.kindObservers[kind][id] = observer

	return &Subscription{id: id, notifier: n}
}

// Notify sends a change to all relevant observers.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	n.mu.RUnlock()

	if n.async {
		select {
		case n.buffer <- change:
		case <-n.done:
		}
		return
	}

	n.deliver(change)
}

// Close shuts down the notifier. It is safe to call Close multiple times.
// Pending async changes are delivered before Close returns.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.globalObservers, id)
	for kind, observers := range n.kindObservers {
		delete(observers, id)
		if len(observers) == 0 {
			delete(n.kindObservers, kind)
		}
	}
}

func (n *Notifier) deliver(change Change) {
	n.mu.RLock()
	observers := make([]Observer, 0, len(n.globalObservers)+len(n.kindObservers[change.Kind]))
	for _, obs := range n.globalObservers {
		observers = append(observers, obs)
	}
	for _, obs := range n.kindObservers[change.Kind] {
		observers = append(observers, obs)
	}
	n.mu.RUnlock()

	// Call observers without holding the lock so they may subscribe.
	for _, obs := range observers {
		n.safeCall(obs, change)
	}
}

// safeCall keeps a panicking observer from taking down the session.
func (n *Notifier) safeCall(obs Observer, change Change) {
	defer func() {
		_ = recover()
	}()
	obs(change)
}

func (n *Notifier) processAsync() {
	defer n.wg.Done()

	for {
		select {
		case change := <-n.buffer:
			n.deliver(change)
		case <-n.done:
			for {
				select {
				case change := <-n.buffer:
					n.deliver(change)
				default:
					return
				}
			}
		}
	}
}
