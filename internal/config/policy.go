package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"carshare/internal/domain"
)

// PolicyFile is the YAML document describing settlement rules. Every field is optional.
//
//	currency: KES
//	commission_rate: "0.15"
//	liquid_ratio: "0.70"
//	minimum_withdrawal: "10.00"
//	refund_tiers:
//	  - {min_notice: 48h, rental_share: "1", fee_share: "1"}
//	  - {min_notice: 24h, rental_share: "0", fee_share: "0.5"}
//	  - {min_notice: 0s, rental_share: "0", fee_share: "0"}
type PolicyFile struct {
	Currency          string           `yaml:"currency"`
	CommissionRate    string           `yaml:"commission_rate"`
	LiquidRatio       string           `yaml:"liquid_ratio"`
	MinimumWithdrawal string           `yaml:"minimum_withdrawal"`
	RefundTiers       []RefundTierFile `yaml:"refund_tiers"`
}

// RefundTierFile is one refund tier in the policy file.
type RefundTierFile struct {
	MinNotice   string `yaml:"min_notice"`
	RentalShare string `yaml:"rental_share"`
	FeeShare    string `yaml:"fee_share"`
}

// LoadPolicyFile reads a settlement policy from a YAML file.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy PolicyFile
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return &policy, nil
}

// Apply overrides the fields set in the file.
func (p *PolicyFile) Apply(s *SettlementConfig) error {
	if p.Currency != "" {
		s.Currency = strings.ToUpper(p.Currency)
	}
	if p.CommissionRate != "" {
		rate, err := decimal.NewFromString(p.CommissionRate)
		if err != nil {
			return fmt.Errorf("commission_rate: %w", err)
		}
		s.CommissionRate = rate
	}
	if p.LiquidRatio != "" {
		ratio, err := decimal.NewFromString(p.LiquidRatio)
		if err != nil {
			return fmt.Errorf("liquid_ratio: %w", err)
		}
		s.LiquidRatio = ratio
	}
	if p.MinimumWithdrawal != "" {
		s.MinimumWithdrawal = p.MinimumWithdrawal
	}

	if len(p.RefundTiers) > 0 {
		tiers := make([]domain.RefundTier, 0, len(p.RefundTiers))
		for i, t := range p.RefundTiers {
			tier, err := t.parse()
			if err != nil {
				return fmt.Errorf("refund_tiers[%d]: %w", i, err)
			}
			tiers = append(tiers, tier)
		}
		s.RefundTiers = tiers
	}
	return nil
}

func (t RefundTierFile) parse() (domain.RefundTier, error) {
	notice, err := time.ParseDuration(t.MinNotice)
	if err != nil {
		return domain.RefundTier{}, fmt.Errorf("min_notice: %w", err)
	}
	rental, err := parseShare(t.RentalShare)
	if err != nil {
		return domain.RefundTier{}, fmt.Errorf("rental_share: %w", err)
	}
	fee, err := parseShare(t.FeeShare)
	if err != nil {
		return domain.RefundTier{}, fmt.Errorf("fee_share: %w", err)
	}
	return domain.RefundTier{MinNotice: notice, RentalShare: rental, FeeShare: fee}, nil
}

// parseShare parses a fraction in [0, 1]; empty means 0.
func parseShare(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s is outside [0, 1]", s)
	}
	return d, nil
}
