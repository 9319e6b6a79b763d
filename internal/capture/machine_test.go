// ABOUTME: Tests for the capture state machine
// ABOUTME: Covers the happy path, rejections, cancellation, restarts and storage faults

package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pulselog/internal/store"
	"github.com/2389/pulselog/internal/vitals"
)

const alice = "@alice:example.org"

func newTestMachine(t *testing.T) (*Machine, *store.MockStore) {
	t.Helper()
	st := store.NewMockStore()
	table := NewTable(0, 0)
	t.Cleanup(table.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMachine(table, st, logger), st
}

func TestMachine_HappyPath(t *testing.T) {
	m, st := newTestMachine(t)
	ctx := context.Background()

	res := m.Start(alice)
	assert.Equal(t, AwaitingSystolic, res.Session.Stage)
	assert.Equal(t, vitals.Systolic, res.Prompt)
	assert.False(t, res.Restarted)
	assert.NotEmpty(t, res.Session.ID)

	res, err := m.Input(ctx, alice, "120")
	require.NoError(t, err)
	assert.Equal(t, AwaitingDiastolic, res.Session.Stage)
	assert.Equal(t, vitals.Diastolic, res.Prompt)
	assert.Equal(t, 120, res.Session.Systolic)

	res, err = m.Input(ctx, alice, "80")
	require.NoError(t, err)
	assert.Equal(t, AwaitingPulse, res.Session.Stage)
	assert.Equal(t, vitals.Pulse, res.Prompt)

	res, err = m.Input(ctx, alice, "65")
	require.NoError(t, err)
	assert.Equal(t, Completed, res.Session.Stage)
	assert.True(t, res.Session.Stage.Terminal())
	require.NotNil(t, res.Record)
	assert.Equal(t, 120, res.Record.Systolic)
	assert.Equal(t, 80, res.Record.Diastolic)
	assert.Equal(t, 65, res.Record.Pulse)

	assert.False(t, m.Active(alice), "session must be discarded after commit")

	all, err := st.All(ctx, alice)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, *res.Record, all[0])
}

func TestMachine_RejectsAndStays(t *testing.T) {
	m, st := newTestMachine(t)
	ctx := context.Background()

	m.Start(alice)

	res, err := m.Input(ctx, alice, "999")
	require.NoError(t, err)
	require.NotNil(t, res.Rejected)
	assert.Equal(t, vitals.OutOfRange, res.Rejected.Kind)
	assert.Equal(t, AwaitingSystolic, res.Session.Stage)
	assert.Equal(t, vitals.Systolic, res.Prompt)

	res, err = m.Input(ctx, alice, "abc")
	require.NoError(t, err)
	require.NotNil(t, res.Rejected)
	assert.Equal(t, vitals.NotANumber, res.Rejected.Kind)

	res, err = m.Input(ctx, alice, "120")
	require.NoError(t, err)
	assert.Nil(t, res.Rejected)
	assert.Equal(t, AwaitingDiastolic, res.Session.Stage)

	// Diastolic has a tighter upper bound than systolic
	res, err = m.Input(ctx, alice, "200")
	require.NoError(t, err)
	require.NotNil(t, res.Rejected)
	assert.Equal(t, vitals.Diastolic, res.Rejected.Field)
	assert.Equal(t, AwaitingDiastolic, res.Session.Stage)

	all, _ := st.All(ctx, alice)
	assert.Empty(t, all)
}

func TestMachine_UnlimitedRetries(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	m.Start(alice)
	for i := 0; i < 100; i++ {
		res, err := m.Input(ctx, alice, "nope")
		require.NoError(t, err)
		require.NotNil(t, res.Rejected)
	}
	assert.True(t, m.Active(alice))
}

func TestMachine_CancelAtEveryStage(t *testing.T) {
	inputs := [][]string{
		{},
		{"120"},
		{"120", "80"},
	}

	for _, prefix := range inputs {
		m, st := newTestMachine(t)
		ctx := context.Background()

		m.Start(alice)
		for _, in := range prefix {
			_, err := m.Input(ctx, alice, in)
			require.NoError(t, err)
		}

		res, ok := m.Cancel(alice)
		require.True(t, ok)
		assert.Equal(t, Ended, res.Session.Stage)
		assert.False(t, m.Active(alice))

		all, err := st.All(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, all, "cancel after %v must not write", prefix)
	}
}

func TestMachine_CancelWithoutSession(t *testing.T) {
	m, _ := newTestMachine(t)
	_, ok := m.Cancel(alice)
	assert.False(t, ok)
}

func TestMachine_InputWithoutSession(t *testing.T) {
	m, _ := newTestMachine(t)
	_, err := m.Input(context.Background(), alice, "120")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMachine_RestartDiscardsPartialValues(t *testing.T) {
	m, st := newTestMachine(t)
	ctx := context.Background()

	first := m.Start(alice)
	_, err := m.Input(ctx, alice, "120")
	require.NoError(t, err)

	res := m.Start(alice)
	assert.True(t, res.Restarted)
	assert.NotEqual(t, first.Session.ID, res.Session.ID)
	assert.Equal(t, AwaitingSystolic, res.Session.Stage)
	assert.Zero(t, res.Session.Systolic)

	for _, in := range []string{"130", "85", "70"} {
		res, err = m.Input(ctx, alice, in)
		require.NoError(t, err)
	}
	assert.Equal(t, Completed, res.Session.Stage)

	all, _ := st.All(ctx, alice)
	require.Len(t, all, 1)
	assert.Equal(t, 130, all[0].Systolic)
}

func TestMachine_StorageFaultEndsSession(t *testing.T) {
	m, st := newTestMachine(t)
	ctx := context.Background()

	m.Start(alice)
	_, err := m.Input(ctx, alice, "120")
	require.NoError(t, err)
	_, err = m.Input(ctx, alice, "80")
	require.NoError(t, err)

	st.FailNextAppend(errors.New("disk I/O error"))
	res, err := m.Input(ctx, alice, "65")
	require.Error(t, err)

	var sErr *store.StorageError
	assert.True(t, errors.As(err, &sErr))
	assert.Equal(t, Ended, res.Session.Stage)
	assert.Nil(t, res.Record)
	assert.False(t, m.Active(alice))

	all, _ := st.All(ctx, alice)
	assert.Empty(t, all)
}

func TestMachine_UsersAreIndependent(t *testing.T) {
	m, st := newTestMachine(t)
	ctx := context.Background()
	bob := "@bob:example.org"

	m.Start(alice)
	m.Start(bob)

	_, err := m.Input(ctx, alice, "120")
	require.NoError(t, err)

	// Bob's first value goes to his systolic, not Alice's diastolic
	res, err := m.Input(ctx, bob, "140")
	require.NoError(t, err)
	assert.Equal(t, AwaitingDiastolic, res.Session.Stage)
	assert.Equal(t, 140, res.Session.Systolic)

	m.Cancel(bob)
	assert.True(t, m.Active(alice))

	for _, in := range []string{"80", "65"} {
		_, err = m.Input(ctx, alice, in)
		require.NoError(t, err)
	}
	aliceRecs, _ := st.All(ctx, alice)
	bobRecs, _ := st.All(ctx, bob)
	assert.Len(t, aliceRecs, 1)
	assert.Empty(t, bobRecs)
}

func TestStage_Field(t *testing.T) {
	f, ok := AwaitingPulse.Field()
	assert.True(t, ok)
	assert.Equal(t, vitals.Pulse, f)

	_, ok = Completed.Field()
	assert.False(t, ok)
	assert.Equal(t, "awaiting_diastolic", AwaitingDiastolic.String())
}
