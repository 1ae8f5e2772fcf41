package app

import (
	"context"
	"fmt"
	"log"

	"carshare/internal/config"
	"carshare/internal/domain"
	"carshare/internal/notify"
	"carshare/internal/service"
)

// NewSettlementPolicy turns the loaded configuration into service rules.
func NewSettlementPolicy(cfg config.SettlementConfig) (service.SettlementPolicy, error) {
	commission, err := domain.NewCommissionPolicy(cfg.CommissionRate)
	if err != nil {
		return service.SettlementPolicy{}, err
	}

	minimum, err := domain.ParseMoney(cfg.MinimumWithdrawal, cfg.Currency)
	if err != nil {
		return service.SettlementPolicy{}, fmt.Errorf("minimum withdrawal: %w", err)
	}

	tiers := cfg.RefundTiers
	if len(tiers) == 0 {
		tiers = domain.DefaultRefundTiers()
	}

	return service.SettlementPolicy{
		Currency:              cfg.Currency,
		Commission:            commission,
		LiquidRatio:           cfg.LiquidRatio,
		MinimumWithdrawal:     minimum,
		Cancellation:          domain.NewCancellationPolicy(tiers),
		LockTTL:               cfg.LockTTL,
		MaxWithdrawalAttempts: cfg.MaxWithdrawalAttempts,
	}, nil
}

// NewNotificationChannels builds the email and push senders that are configured.
// A channel without credentials is nil.
func NewNotificationChannels(ctx context.Context, cfg config.NotificationConfig) (service.EmailSender, service.PushSender, error) {
	var email service.EmailSender
	if cfg.SendGridAPIKey != "" {
		email = notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.FromEmail, cfg.FromName)
		log.Println("SendGrid email notifications enabled")
	}

	var push service.PushSender
	if cfg.FirebaseCredentialsFile != "" {
		fcm, err := notify.NewFCMSender(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		push = fcm
		log.Println("Firebase push notifications enabled")
	}

	return email, push, nil
}
