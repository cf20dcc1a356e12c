package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitAndRecent(t *testing.T) {
	rec := NewRecorder(4)
	rec.Emit("token.minted", map[string]any{"collection_id": "c1"})
	rec.Emit("token.transferred", map[string]any{"collection_id": "c1"})

	recent := rec.Recent(10)
	assert.Len(t, recent, 2)
	assert.Equal(t, "token.transferred", recent[0].Type, "newest first")
	assert.Equal(t, "token.minted", recent[1].Type)
	assert.NotEmpty(t, recent[0].ID)
	assert.False(t, recent[0].Timestamp.IsZero())
}

func TestRingWrapsAround(t *testing.T) {
	rec := NewRecorder(2)
	rec.Emit("a", nil)
	rec.Emit("b", nil)
	rec.Emit("c", nil)

	recent := rec.Recent(10)
	assert.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Type)
	assert.Equal(t, "b", recent[1].Type)
	assert.Equal(t, 2, rec.Count())
}

func TestRecentByType(t *testing.T) {
	rec := NewRecorder(8)
	rec.Emit("a", nil)
	rec.Emit("b", nil)
	rec.Emit("a", nil)

	got := rec.RecentByType("a", 10)
	assert.Len(t, got, 2)
	got = rec.RecentByType("missing", 10)
	assert.Empty(t, got)
}

func TestSubscribe(t *testing.T) {
	rec := NewRecorder(4)

	var seen []string
	unsubscribe := rec.Subscribe(func(e Event) {
		seen = append(seen, e.Type)
	})

	rec.Emit("a", nil)
	unsubscribe()
	rec.Emit("b", nil)

	assert.Equal(t, []string{"a"}, seen)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.Emit("ignored", nil)
	assert.Nil(t, rec.Recent(5))
	assert.Zero(t, rec.Count())
	rec.Subscribe(func(Event) {})()
}
