package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghica/cliver/internal/driver"
	"github.com/danghica/cliver/internal/model"
	"github.com/danghica/cliver/internal/supervisor"
	"github.com/danghica/cliver/internal/testutil"
	"github.com/danghica/cliver/internal/ws"
)

func TestRegistry_Lifecycle(t *testing.T) {
	reg := NewRegistry(&fakeSpawner{respond: echo}, nil, Config{}, nil)
	defer reg.Close()

	first := reg.Open(newFakeTransport())
	time.Sleep(time.Millisecond)
	second := reg.Open(newFakeTransport())

	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, 2, reg.Count())

	got, err := reg.Get(first.ID())
	require.NoError(t, err)
	assert.Same(t, first, got)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	infos := reg.List()
	require.Len(t, infos, 2)
	assert.Equal(t, first.ID(), infos[0].ID)
	assert.Equal(t, model.SessionStateEmpty, infos[0].State)
	assert.Equal(t, model.TransportModeNone, infos[0].Mode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, reg.Terminate(ctx, first.ID()))

	require.Eventually(t, func() bool { return reg.Count() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, reg.Terminate(ctx, first.ID()), model.ErrSessionNotFound)
}

func TestRegistry_CloseNotifiesSessions(t *testing.T) {
	reg := NewRegistry(&fakeSpawner{}, nil, Config{}, nil)

	transports := []*fakeTransport{newFakeTransport(), newFakeTransport()}
	for _, tr := range transports {
		reg.Open(tr)
	}

	reg.Close()

	assert.Equal(t, 0, reg.Count())
	for _, tr := range transports {
		assert.Equal(t, []*ws.ServerMessage{ws.ClosedMessage(ShutdownMessage)}, tr.messages())
		assert.Equal(t, 1, tr.closeCount())
	}
}

func TestSession_WithFakeTool(t *testing.T) {
	sup, err := supervisor.New(supervisor.Options{
		Bin:    testutil.FakeToolBinary(),
		Env:    testutil.FakeToolEnviron(testutil.ModeServe),
		Driver: driver.NewCjpmDriver(nil),
	}, nil)
	require.NoError(t, err)

	s, transport, _ := startSession(t, sup, Config{IdleTimeout: time.Minute})

	s.Submit("help")
	msgs := transport.wait(t, 1)
	require.NotNil(t, msgs[0].Stdout)
	assert.Equal(t, testutil.HelpText, *msgs[0].Stdout)
	assert.NotContains(t, *msgs[0].Stdout, "run finished")

	s.Submit("frobnicate")
	msgs = transport.wait(t, 2)
	require.NotNil(t, msgs[1].Stderr)
	assert.Contains(t, *msgs[1].Stderr, "Unknown command")

	s.Submit("quit")
	msgs = transport.wait(t, 3)
	assert.Equal(t, ws.RecordMessage("bye", ""), msgs[2])

	require.Eventually(t, func() bool {
		return s.Info().State == model.SessionStateExited
	}, 5*time.Second, 10*time.Millisecond)

	s.Submit("help")
	msgs = transport.wait(t, 4)
	assert.Equal(t, ws.RecordMessage("", supervisor.ProcessExitedText), msgs[3])

	s.Submit("exit")
	waitClosed(t, s)
	msgs = transport.messages()
	require.Len(t, msgs, 5)
	assert.True(t, msgs[4].SessionClosed)
}

func TestSession_SilentToolGetsExitRecord(t *testing.T) {
	sup, err := supervisor.New(supervisor.Options{
		Bin:    testutil.FakeToolBinary(),
		Env:    testutil.FakeToolEnviron(testutil.ModeTrailerOnly),
		Driver: driver.NewCjpmDriver(nil),
	}, nil)
	require.NoError(t, err)

	s, transport, _ := startSession(t, sup, Config{})

	s.Submit("help")
	msgs := transport.wait(t, 1)
	assert.Equal(t, ws.RecordMessage("", supervisor.ProcessExitedText), msgs[0])
}
