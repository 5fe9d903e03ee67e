package events_test

import (
	"testing"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type recorder struct{ got []events.Event }

func (r *recorder) handle(e events.Event) { r.got = append(r.got, e) }

func (r *recorder) kinds() []events.Kind {
	out := make([]events.Kind, len(r.got))
	for i, e := range r.got {
		out[i] = e.Kind
	}
	return out
}

func TestSubscribeFiltersByKind(t *testing.T) {
	bus := events.NewBus()
	var all, factors recorder
	bus.Subscribe(all.handle)
	bus.Subscribe(factors.handle, events.FactorsChanged)

	id := uuid.NewString()
	bus.Publish(events.Event{Kind: events.DatasetAdded, DatasetID: id})
	bus.Publish(events.Event{Kind: events.FactorsChanged, DatasetID: id})

	assert.Equal(t, []events.Kind{events.DatasetAdded, events.FactorsChanged}, all.kinds())
	assert.Equal(t, []events.Kind{events.FactorsChanged}, factors.kinds())
	assert.Equal(t, id, factors.got[0].DatasetID)
}

func TestSubscriptionClose(t *testing.T) {
	bus := events.NewBus()
	var r recorder
	sub := bus.Subscribe(r.handle)
	bus.Publish(events.Event{Kind: events.WorkspaceChanged})
	sub.Close()
	sub.Close()
	bus.Publish(events.Event{Kind: events.WorkspaceChanged})
	assert.Len(t, r.got, 1)
}

func TestSuppressNests(t *testing.T) {
	bus := events.NewBus()
	var r recorder
	bus.Subscribe(r.handle)

	outer := bus.Suppress()
	inner := bus.Suppress()
	bus.Publish(events.Event{Kind: events.DatasetChanged})
	inner()
	inner()
	bus.Publish(events.Event{Kind: events.DatasetChanged})
	outer()
	bus.Publish(events.Event{Kind: events.BinningChanged})

	assert.Equal(t, []events.Kind{events.BinningChanged}, r.kinds())
}

func TestDeferFlushesOnOutermostRelease(t *testing.T) {
	bus := events.NewBus()
	var r recorder
	bus.Subscribe(r.handle)

	outer := bus.Defer()
	bus.Publish(events.Event{Kind: events.DatasetAdded})
	inner := bus.Defer()
	bus.Publish(events.Event{Kind: events.DatasetSelected})
	inner()
	assert.Empty(t, r.got)
	outer()

	assert.Equal(t, []events.Kind{events.DatasetAdded, events.DatasetSelected}, r.kinds())
	assert.Equal(t, "dataset_selected", events.DatasetSelected.String())
}
