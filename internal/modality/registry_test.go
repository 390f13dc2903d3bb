package modality_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holodeck-sim/holodeck/internal/modality"
	"github.com/holodeck-sim/holodeck/internal/testutil"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := modality.NewRegistry()

	require.NoError(t, reg.Register(testutil.NewScriptedState("chat")))

	st, ok := reg.Get("chat")
	require.True(t, ok)
	assert.Equal(t, "chat", st.ModalityType())

	_, ok = reg.Get("email")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := modality.NewRegistry()

	require.NoError(t, reg.Register(testutil.NewScriptedState("chat")))
	assert.Error(t, reg.Register(testutil.NewScriptedState("chat")))
}

func TestRegistry_RejectsNilAndUnnamed(t *testing.T) {
	reg := modality.NewRegistry()

	assert.Error(t, reg.Register(nil))
	assert.Error(t, reg.Register(testutil.NewScriptedState("")))
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := modality.NewRegistry()
	for _, name := range []string{"weather", "chat", "email"} {
		require.NoError(t, reg.Register(testutil.NewScriptedState(name)))
	}

	assert.Equal(t, []string{"chat", "email", "weather"}, reg.Names())
	assert.Equal(t, 3, reg.Len())
}

func TestRegistry_RecordMutation(t *testing.T) {
	reg := modality.NewRegistry()
	require.NoError(t, reg.Register(testutil.NewScriptedState("chat")))

	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	reg.RecordMutation("chat", at)
	reg.RecordMutation("chat", at.Add(time.Minute))

	r, ok := reg.Lookup("chat")
	require.True(t, ok)
	assert.Equal(t, int64(2), r.UpdateCount)
	assert.True(t, r.LastUpdated.Equal(at.Add(time.Minute)))

	// Unknown names are ignored rather than invented.
	reg.RecordMutation("email", at)
	_, ok = reg.Lookup("email")
	assert.False(t, ok)
}
