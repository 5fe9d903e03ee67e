// Package events is a synchronous, typed publish/subscribe bus for
// workspace state changes.
package events

import "sync"

// Kind identifies an event type.
type Kind int

const (
	WorkspaceChanged Kind = iota + 1
	DatasetAdded
	DatasetRemoved
	DatasetChanged
	DatasetSelected
	DatatableSelected
	FactorsChanged
	BinningChanged
	ImportFinished
)

var kindNames = map[Kind]string{
	WorkspaceChanged:  "workspace_changed",
	DatasetAdded:      "dataset_added",
	DatasetRemoved:    "dataset_removed",
	DatasetChanged:    "dataset_changed",
	DatasetSelected:   "dataset_selected",
	DatatableSelected: "datatable_selected",
	FactorsChanged:    "factors_changed",
	BinningChanged:    "binning_changed",
	ImportFinished:    "import_finished",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is delivered to subscribers. DatasetID and Datatable are empty
// when not applicable.
type Event struct {
	Kind      Kind
	DatasetID string
	Datatable string
}

// Handler receives events.
type Handler func(Event)

// Subscription is returned by Subscribe. Close unregisters it.
type Subscription struct {
	bus   *Bus
	id    uint64
	kinds map[Kind]bool
	fn    Handler
}

// Close stops delivery to the subscription. It is safe to call twice.
func (s *Subscription) Close() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.unsubscribe(s.id)
}

func (s *Subscription) wants(k Kind) bool {
	return len(s.kinds) == 0 || s.kinds[k]
}

// Bus delivers events synchronously, in subscription order.
type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	subs     []*Subscription
	suppress int
	deferred int
	queue    []Event
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for the given kinds, or for every kind when none
// are given.
func (b *Bus) Subscribe(fn Handler, kinds ...Kind) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{bus: b, id: b.nextID, fn: fn}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}
	b.subs = append(b.subs, s)
	return s
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to matching subscribers. While suppressed the event is
// dropped; while deferred it is queued until the outermost Defer releases.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	if b.suppress > 0 {
		b.mu.Unlock()
		return
	}
	if b.deferred > 0 {
		b.queue = append(b.queue, e)
		b.mu.Unlock()
		return
	}
	subs := append([]*Subscription(nil), b.subs...)
	b.mu.Unlock()
	deliver(subs, e)
}

func deliver(subs []*Subscription, e Event) {
	for _, s := range subs {
		if s.wants(e.Kind) {
			s.fn(e)
		}
	}
}

// Suppress drops all events until the returned release func is called.
// Calls nest; release is idempotent.
func (b *Bus) Suppress() (release func()) {
	b.mu.Lock()
	b.suppress++
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.suppress--
			b.mu.Unlock()
		})
	}
}

// Defer queues events until the returned release func is called, then
// delivers them in order. Calls nest; only the outermost release flushes.
func (b *Bus) Defer() (release func()) {
	b.mu.Lock()
	b.deferred++
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.deferred--
			if b.deferred > 0 {
				b.mu.Unlock()
				return
			}
			queue := b.queue
			b.queue = nil
			subs := append([]*Subscription(nil), b.subs...)
			b.mu.Unlock()
			for _, e := range queue {
				deliver(subs, e)
			}
		})
	}
}
