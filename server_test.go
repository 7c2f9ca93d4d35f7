package osc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerLoopbackFourMessagesInOrder(t *testing.T) {
	type received struct {
		addr net.Addr
		root Element
	}

	var mu sync.Mutex
	var got []received
	done := make(chan struct{})

	handler := HandlerFunc(func(addr net.Addr, root Element, recvTime time.Time) {
		mu.Lock()
		got = append(got, received{addr, root})
		n := len(got)
		mu.Unlock()
		if n == 4 {
			close(done)
		}
	})

	srv := NewServer("127.0.0.1:0", handler, WithHonorTimeTags(false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listening := make(chan string, 1)
	go func() {
		// ListenAndServe binds synchronously before entering its receive
		// loop; poll srv.conn briefly rather than adding a second
		// synchronization path for a test-only concern.
		for i := 0; i < 100 && srv.conn == nil; i++ {
			time.Sleep(5 * time.Millisecond)
		}
		if srv.conn != nil {
			listening <- srv.conn.LocalAddr().String()
		} else {
			listening <- ""
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	addr := <-listening
	require.NotEmpty(t, addr)

	client := NewClient()
	defer client.Close()
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	require.NoError(t, err)
	require.NoError(t, client.Add(udpAddr.IP.String(), udpAddr.Port))

	for i := 1; i <= 4; i++ {
		msg := NewMessage("/seq")
		require.NoError(t, msg.Append(Int32(int32(i))))
		require.NoError(t, client.Send(context.Background(), msg))
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for four handler invocations")
	}

	cancel()
	<-errCh

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 4)
	for i, r := range got {
		msg, ok := r.root.(*Message)
		require.True(t, ok)
		assert.Equal(t, "/seq", msg.Address)
		assert.Equal(t, int32(i+1), msg.Arguments[0].Value)
		assert.Equal(t, "127.0.0.1", r.addr.(*net.UDPAddr).IP.String())
	}
}

func TestServerDropsUnparseableDatagram(t *testing.T) {
	var mu sync.Mutex
	var count int
	handler := HandlerFunc(func(addr net.Addr, root Element, recvTime time.Time) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	srv := NewServer("127.0.0.1:0", handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.ListenAndServe(ctx)
	for i := 0; i < 100 && srv.conn == nil; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	require.NotNil(t, srv.conn)

	conn, err := net.Dial("udp", srv.conn.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("garbage, not osc"))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}
