package core

import (
	"context"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	sender := NewClient("sender", "sender", 0)

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient("c"+strconv.Itoa(i), "user", 0)
		if _, err := hub.Join(ctx, "bench", c); err != nil {
			b.Fatal(err)
		}
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid dropped events.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for {
				select {
				case <-cl.Events:
				case <-ctx.Done():
					return
				}
			}
		}(c)
	}

	event := NewEvent("rotateCommand", map[string]float64{"vertical": 1, "horizontal": 2})

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := hub.Broadcast(ctx, "bench", sender, event); err != nil {
			b.Fatal(err)
		}
		<-target.Events
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }
