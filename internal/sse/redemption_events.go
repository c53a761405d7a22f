package sse

import (
	"context"
	"sync"

	"ms-deals/internal/models"
)

// RedemptionEventEmitter fans redemption events out to SSE clients, keyed by merchant ID.
type RedemptionEventEmitter struct {
	clients map[string][]chan models.RedemptionEvent
	mu      sync.RWMutex
}

func NewRedemptionEventEmitter() *RedemptionEventEmitter {
	return &RedemptionEventEmitter{
		clients: make(map[string][]chan models.RedemptionEvent),
	}
}

// Subscribe registers a client for a merchant. The channel is closed once ctx is done.
func (e *RedemptionEventEmitter) Subscribe(ctx context.Context, merchantID string) <-chan models.RedemptionEvent {
	clientChan := make(chan models.RedemptionEvent, 10)

	e.mu.Lock()
	e.clients[merchantID] = append(e.clients[merchantID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(merchantID, clientChan)
	}()

	return clientChan
}

// Emit delivers the event to every subscriber of its merchant. Slow clients are skipped.
func (e *RedemptionEventEmitter) Emit(event models.RedemptionEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[event.MerchantID] {
		select {
		case clientChan <- event:
		default:
			// buffer full
		}
	}
}

func (e *RedemptionEventEmitter) remove(merchantID string, clientChan chan models.RedemptionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[merchantID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[merchantID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[merchantID]) == 0 {
		delete(e.clients, merchantID)
	}
}

// ClientCount returns the number of clients currently subscribed to a merchant
func (e *RedemptionEventEmitter) ClientCount(merchantID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[merchantID])
}
