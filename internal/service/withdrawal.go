package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"carshare/internal/domain"
	"carshare/internal/repository"
)

// BalanceSummary breaks down how an owner's available balance is derived.
type BalanceSummary struct {
	OwnerID           string
	TotalEarnings     domain.Money // net of COMPLETED bookings
	Eligible          domain.Money // floor(TotalEarnings * LiquidRatio)
	Withdrawn         domain.Money // withdrawals that have not failed
	Available         domain.Money
	LiquidRatio       decimal.Decimal
	MinimumWithdrawal domain.Money
}

// ComputeAvailableBalance returns the amount the owner may withdraw right now.
func (s *SettlementService) ComputeAvailableBalance(ctx context.Context, ownerID string) (domain.Money, error) {
	summary, err := s.GetBalanceSummary(ctx, ownerID)
	if err != nil {
		return domain.Money{}, err
	}
	return summary.Available, nil
}

// GetBalanceSummary returns the owner's earnings, withdrawals and available balance.
func (s *SettlementService) GetBalanceSummary(ctx context.Context, ownerID string) (*BalanceSummary, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}

	earned, err := s.bookingRepo.SumNetByProvider(ctx, ownerID, domain.BookingStatusCompleted, s.policy.Currency)
	if err != nil {
		return nil, err
	}
	held, err := s.withdrawalRepo.SumHeldByOwner(ctx, ownerID, s.policy.Currency)
	if err != nil {
		return nil, err
	}

	eligible := earned.MulFloor(s.policy.LiquidRatio)
	available := domain.ZeroMoney(s.policy.Currency)
	if eligible.Amount > held.Amount {
		available = domain.NewMoney(eligible.Amount-held.Amount, s.policy.Currency)
	}

	return &BalanceSummary{
		OwnerID:           ownerID,
		TotalEarnings:     earned,
		Eligible:          eligible,
		Withdrawn:         held,
		Available:         available,
		LiquidRatio:       s.policy.LiquidRatio,
		MinimumWithdrawal: s.policy.MinimumWithdrawal,
	}, nil
}

// RequestWithdrawalRequest contains the parameters for requesting a payout.
type RequestWithdrawalRequest struct {
	OwnerID       string
	Amount        domain.Money
	Method        string
	MethodDetails string
}

// RequestWithdrawal validates and records a payout request, then hands it to the
// payout processor. The balance check and insert are retried while concurrent
// withdrawals of the same owner keep changing the balance.
func (s *SettlementService) RequestWithdrawal(ctx context.Context, req RequestWithdrawalRequest) (*domain.WithdrawalRequest, error) {
	if req.OwnerID == "" {
		return nil, ErrInvalidOwnerID
	}

	method, err := domain.ParseWithdrawalMethod(req.Method)
	if err != nil {
		return nil, err
	}

	if req.Amount.Currency != s.policy.Currency {
		return nil, fmt.Errorf("%w: %q, expected %s", ErrUnsupportedCurrency, req.Amount.Currency, s.policy.Currency)
	}
	if req.Amount.Amount < s.policy.MinimumWithdrawal.Amount {
		return nil, fmt.Errorf("%w: minimum is %s", ErrBelowMinimum, s.policy.MinimumWithdrawal)
	}

	masked, err := domain.ValidateMethodDetails(method, req.MethodDetails)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.policy.MaxWithdrawalAttempts; attempt++ {
		w, err := s.tryWithdrawal(ctx, req.OwnerID, req.Amount, method, masked)
		if errors.Is(err, repository.ErrVersionConflict) || errors.Is(err, repository.ErrDuplicate) {
			log.Printf("[SETTLEMENT] withdrawal attempt %d for owner %s raced: %v", attempt, req.OwnerID, err)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.submitPayout(ctx, w)
		s.notifyWithdrawal(ctx, w)
		return w, nil
	}

	return nil, fmt.Errorf("%w: balance of owner %s kept changing", ErrConflictingTransition, req.OwnerID)
}

// tryWithdrawal performs one read-validate-write round against the owner's balance token.
func (s *SettlementService) tryWithdrawal(ctx context.Context, ownerID string, amount domain.Money, method domain.WithdrawalMethod, details string) (*domain.WithdrawalRequest, error) {
	version, err := s.withdrawalRepo.BalanceVersion(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summary, err := s.GetBalanceSummary(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if amount.Amount > summary.Available.Amount {
		return nil, fmt.Errorf("%w: requested %s, available %s", ErrInsufficientBalance, amount, summary.Available)
	}

	now := s.now()
	w := &domain.WithdrawalRequest{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Amount:        amount,
		Method:        method,
		MethodDetails: details,
		Status:        domain.WithdrawalStatusSubmitted,
		Reference:     domain.NewWithdrawalReference(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.withdrawalRepo.CreateWithVersion(ctx, w, version); err != nil {
		return nil, err
	}
	return w, nil
}

// GetWithdrawal retrieves a withdrawal by ID.
func (s *SettlementService) GetWithdrawal(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	if withdrawalID == "" {
		return nil, ErrInvalidWithdrawalID
	}
	return s.withdrawalRepo.GetByID(ctx, withdrawalID)
}

// ListWithdrawals retrieves an owner's withdrawals, newest first.
func (s *SettlementService) ListWithdrawals(ctx context.Context, ownerID string) ([]*domain.WithdrawalRequest, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	return s.withdrawalRepo.ListByOwner(ctx, ownerID)
}

// MarkWithdrawalProcessing records that the payout rail picked up the request.
func (s *SettlementService) MarkWithdrawalProcessing(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	return s.advanceWithdrawal(ctx, withdrawalID, domain.WithdrawalStatusProcessing, "")
}

// CompleteWithdrawal records a successful payout.
func (s *SettlementService) CompleteWithdrawal(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	return s.advanceWithdrawal(ctx, withdrawalID, domain.WithdrawalStatusCompleted, "")
}

// FailWithdrawal records a failed payout, releasing the held amount back to the balance.
func (s *SettlementService) FailWithdrawal(ctx context.Context, withdrawalID, reason string) (*domain.WithdrawalRequest, error) {
	return s.advanceWithdrawal(ctx, withdrawalID, domain.WithdrawalStatusFailed, reason)
}

func (s *SettlementService) advanceWithdrawal(ctx context.Context, withdrawalID string, to domain.WithdrawalStatus, reason string) (*domain.WithdrawalRequest, error) {
	if withdrawalID == "" {
		return nil, ErrInvalidWithdrawalID
	}

	w, err := s.withdrawalRepo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}

	from := w.Status
	if err := w.Advance(to, reason, s.now()); err != nil {
		return nil, err
	}

	if err := s.withdrawalRepo.UpdateStatus(ctx, w, from); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: withdrawal %s changed concurrently", ErrConflictingTransition, withdrawalID)
		}
		return nil, err
	}

	s.notifyWithdrawal(ctx, w)
	return w, nil
}

// ResubmitStaleWithdrawals hands SUBMITTED withdrawals older than olderThan to the
// payout processor again. It returns how many were resubmitted.
func (s *SettlementService) ResubmitStaleWithdrawals(ctx context.Context, olderThan time.Duration) (int, error) {
	if s.payouts == nil {
		return 0, nil
	}

	stale, err := s.withdrawalRepo.ListStale(ctx, domain.WithdrawalStatusSubmitted, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	resubmitted := 0
	for _, w := range stale {
		if err := ctx.Err(); err != nil {
			return resubmitted, err
		}
		if err := s.payouts.Submit(ctx, w); err != nil {
			log.Printf("[SETTLEMENT] resubmission of withdrawal %s failed: %v", w.ID, err)
			continue
		}
		resubmitted++
	}
	return resubmitted, nil
}

func (s *SettlementService) submitPayout(ctx context.Context, w *domain.WithdrawalRequest) {
	if s.payouts == nil {
		return
	}
	if err := s.payouts.Submit(ctx, w); err != nil {
		log.Printf("[SETTLEMENT] payout submission for withdrawal %s failed, will retry: %v", w.ID, err)
	}
}

func (s *SettlementService) notifyWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.WithdrawalStatusChanged(ctx, domain.NewWithdrawalStatusChanged(w)); err != nil {
		log.Printf("[SETTLEMENT] notification failed for withdrawal %s: %v", w.ID, err)
	}
}
