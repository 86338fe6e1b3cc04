// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_FirstObservationIsBaseline(t *testing.T) {
	var id Identity
	_, changed := id.Observe("a.mp3", true)
	assert.False(t, changed)
	assert.Equal(t, "a.mp3", id.Current())
	assert.False(t, id.Pending())
}

func TestIdentity_OneReloadPerChange(t *testing.T) {
	var id Identity
	id.Observe("a.mp3", true)

	ch, changed := id.Observe("b.mp3", true)
	require.True(t, changed)
	assert.Equal(t, "a.mp3", ch.Previous)
	assert.Equal(t, "b.mp3", ch.Current)
	assert.True(t, ch.ArmGrace)
	tok := id.Token()

	// Further polls during the grace period do not arm again.
	for i := 0; i < 5; i++ {
		_, changed = id.Observe("b.mp3", true)
		assert.False(t, changed)
	}
	assert.True(t, id.Fire(tok))
	assert.False(t, id.Fire(tok), "reload consumed exactly once")
}

func TestIdentity_ChangeWhileStoppedDoesNotArm(t *testing.T) {
	var id Identity
	id.Observe("a", false)
	ch, changed := id.Observe("b", false)
	require.True(t, changed)
	assert.False(t, ch.ArmGrace)
	assert.False(t, id.Pending())
}

func TestIdentity_EndedShortCircuitsGrace(t *testing.T) {
	var id Identity
	id.Observe("a", true)
	id.Observe("b", true)
	tok := id.Token()

	assert.True(t, id.Ended())
	assert.False(t, id.Fire(tok), "stale grace timer must not reload again")
	assert.False(t, id.Ended())
}

func TestIdentity_RapidChangesCoalesce(t *testing.T) {
	var id Identity
	id.Observe("a", true)
	first, _ := id.Observe("b", true)
	second, changed := id.Observe("c", true)
	require.True(t, changed)
	assert.True(t, first.ArmGrace)
	assert.False(t, second.ArmGrace)
	assert.Equal(t, "c", id.Current())
}

func TestKey_FallsBackToMetadata(t *testing.T) {
	assert.Equal(t, "/music/a.mp3", Key(" /music/a.mp3 ", "T", "A", "B"))
	assert.Equal(t, "A\x1fT\x1fB", Key("", "T", "A", "B"))
	assert.Equal(t, "", Key("", "", "", ""))
}
