package service

import (
	"context"
	"log"
	"sync"
	"time"

	"carshare/internal/domain"
)

// PayoutProcessor is the interface for the external payout rail (M-Pesa, Airtel Money, card).
type PayoutProcessor interface {
	Submit(ctx context.Context, w *domain.WithdrawalRequest) error
}

// PayoutCallbacks receives payout progress. SettlementService implements it.
type PayoutCallbacks interface {
	MarkWithdrawalProcessing(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error)
	CompleteWithdrawal(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error)
	FailWithdrawal(ctx context.Context, withdrawalID, reason string) (*domain.WithdrawalRequest, error)
}

// Ensure SettlementService implements PayoutCallbacks.
var _ PayoutCallbacks = (*SettlementService)(nil)

// MockPayoutProcessor simulates a payout rail that always pays out after a delay.
type MockPayoutProcessor struct {
	mu        sync.RWMutex
	callbacks PayoutCallbacks
	delay     time.Duration
	wg        sync.WaitGroup
}

// NewMockPayoutProcessor creates a new mock payout processor.
func NewMockPayoutProcessor(delay time.Duration) *MockPayoutProcessor {
	return &MockPayoutProcessor{delay: delay}
}

// Bind sets the receiver of payout callbacks.
func (p *MockPayoutProcessor) Bind(callbacks PayoutCallbacks) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = callbacks
}

// Submit accepts the withdrawal and reports PROCESSING then COMPLETED asynchronously.
func (p *MockPayoutProcessor) Submit(ctx context.Context, w *domain.WithdrawalRequest) error {
	p.mu.RLock()
	callbacks := p.callbacks
	p.mu.RUnlock()

	log.Printf("[PAYOUT] Submitted withdrawal=%s reference=%s amount=%s method=%s", w.ID, w.Reference, w.Amount, w.Method)
	if callbacks == nil {
		return nil
	}

	id := w.ID
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		time.Sleep(p.delay)

		// The request context is gone by now.
		ctx := context.Background()
		if _, err := callbacks.MarkWithdrawalProcessing(ctx, id); err != nil {
			log.Printf("[PAYOUT] withdrawal=%s processing callback failed: %v", id, err)
			return
		}
		if _, err := callbacks.CompleteWithdrawal(ctx, id); err != nil {
			log.Printf("[PAYOUT] withdrawal=%s completion callback failed: %v", id, err)
		}
	}()
	return nil
}

// Wait blocks until all in-flight callbacks have finished.
func (p *MockPayoutProcessor) Wait() {
	p.wg.Wait()
}
