package websocket

import (
	"testing"
	"time"

	"github.com/bhandras/kubechat/shared/wire"
	"github.com/stretchr/testify/require"
)

func TestConnection_SendAfterClose(t *testing.T) {
	conn := newConnection("c1", nil, Config{
		WriteTimeout: time.Second,
		SendBuffer:   1,
		Now:          time.Now,
	})
	conn.close()

	err := conn.Send(wire.Output{Event: wire.EventNext, Message: "late"})
	require.ErrorIs(t, err, ErrConnectionClosed)

	// Closing twice is harmless.
	conn.close()
}

func TestConnection_SendTimesOutWhenBufferFull(t *testing.T) {
	conn := newConnection("c1", nil, Config{
		WriteTimeout: 20 * time.Millisecond,
		SendBuffer:   1,
		Now:          time.Now,
	})

	require.NoError(t, conn.sendRaw([]byte("one")))
	require.ErrorIs(t, conn.sendRaw([]byte("two")), ErrSendTimeout)
}
