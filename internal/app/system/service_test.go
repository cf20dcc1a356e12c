package system

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probe struct {
	name     string
	startErr error
	log      *[]string
}

func (p *probe) Name() string { return p.name }

func (p *probe) Start(context.Context) error {
	*p.log = append(*p.log, "start:"+p.name)
	return p.startErr
}

func (p *probe) Stop(context.Context) error {
	*p.log = append(*p.log, "stop:"+p.name)
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	ctx := context.Background()
	var log []string
	m := NewManager()
	require.NoError(t, m.Register(&probe{name: "a", log: &log}))
	require.NoError(t, m.Register(&probe{name: "b", log: &log}))

	require.NoError(t, m.Start(ctx))
	assert.ErrorIs(t, m.Start(ctx), ErrAlreadyStarted)
	assert.ErrorIs(t, m.Register(&probe{name: "c", log: &log}), ErrAlreadyStarted)

	require.NoError(t, m.Stop(ctx))
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, log)

	// Stopping twice is a no-op.
	require.NoError(t, m.Stop(ctx))
}

func TestManagerStartFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	var log []string
	boom := errors.New("boom")
	m := NewManager()
	require.NoError(t, m.Register(&probe{name: "a", log: &log}))
	require.NoError(t, m.Register(&probe{name: "b", startErr: boom, log: &log}))

	err := m.Start(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start:a", "start:b", "stop:a"}, log)
}
