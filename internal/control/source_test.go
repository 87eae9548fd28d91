package control

import (
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPort = 47731

type received struct {
	addr string
	args []float64
}

func newTestSource(t *testing.T, port int) (*Source, chan received, chan struct{}) {
	t.Helper()
	messages := make(chan received, 8)
	reloads := make(chan struct{}, 8)
	src, err := New(port,
		func(addr string, args []float64) { messages <- received{addr, args} },
		func() { reloads <- struct{}{} },
		zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(src.Destroy)
	// Give the serve goroutine a moment to start reading.
	time.Sleep(100 * time.Millisecond)
	return src, messages, reloads
}

func TestSource_RoutesMessages(t *testing.T) {
	src, messages, reloads := newTestSource(t, testPort)
	assert.Equal(t, testPort, src.Port())

	client := osc.NewClient("127.0.0.1", testPort)

	t.Run("control message with numeric args", func(t *testing.T) {
		msg := osc.NewMessage("/fader/1")
		msg.Append(float32(0.5))
		msg.Append(int32(3))
		require.NoError(t, client.Send(msg))

		select {
		case got := <-messages:
			assert.Equal(t, "/fader/1", got.addr)
			assert.Equal(t, []float64{0.5, 3}, got.args)
		case <-time.After(3 * time.Second):
			t.Fatal("message not delivered")
		}
	})

	t.Run("non-numeric args dropped", func(t *testing.T) {
		msg := osc.NewMessage("/label")
		msg.Append("ignored")
		msg.Append(float32(1))
		require.NoError(t, client.Send(msg))

		select {
		case got := <-messages:
			assert.Equal(t, []float64{1}, got.args)
		case <-time.After(3 * time.Second):
			t.Fatal("message not delivered")
		}
	})

	t.Run("reload address raises reload signal", func(t *testing.T) {
		require.NoError(t, client.Send(osc.NewMessage(ReloadAddress)))
		select {
		case <-reloads:
		case <-time.After(3 * time.Second):
			t.Fatal("reload not delivered")
		}
		select {
		case got := <-messages:
			t.Fatalf("reload also delivered as message: %v", got)
		case <-time.After(200 * time.Millisecond):
		}
	})
}

func TestSource_BusyPortFailsConstruction(t *testing.T) {
	const port = testPort + 1
	_, _, _ = newTestSource(t, port)

	second, err := New(port, func(string, []float64) {}, func() {}, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, second)
}
