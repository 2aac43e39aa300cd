package items

import "sync"

// Notifier is an in-process broadcast of "something in this vault
// changed". Subscribers poll the repository on wakeup; notifications
// carry no payload and coalesce, so a slow subscriber sees at most one
// pending signal. All methods are safe on a nil receiver, which lets
// callers treat the notifier as optional.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan struct{}
	all  map[int]chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[string]map[int]chan struct{}),
		all:  make(map[int]chan struct{}),
	}
}

// Subscribe registers interest in a vault and returns the signal channel
// together with a cancel function. Cancel is idempotent.
func (n *Notifier) Subscribe(vaultID string) (<-chan struct{}, func()) {
	if n == nil {
		ch := make(chan struct{})
		return ch, func() {}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++

	ch := make(chan struct{}, 1)
	if n.subs[vaultID] == nil {
		n.subs[vaultID] = make(map[int]chan struct{})
	}
	n.subs[vaultID][id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if chans, ok := n.subs[vaultID]; ok {
			delete(chans, id)
			if len(chans) == 0 {
				delete(n.subs, vaultID)
			}
		}
	}
	return ch, cancel
}

// SubscribeAll registers interest in every vault.
func (n *Notifier) SubscribeAll() (<-chan struct{}, func()) {
	if n == nil {
		ch := make(chan struct{})
		return ch, func() {}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++

	ch := make(chan struct{}, 1)
	n.all[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.all, id)
	}
	return ch, cancel
}

// Notify wakes every subscriber of the vault, plus every all-vaults
// subscriber. It never blocks: a subscriber with a signal already
// pending is skipped.
func (n *Notifier) Notify(vaultID string) {
	if n == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs[vaultID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	for _, ch := range n.all {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
