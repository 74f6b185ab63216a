// Package rates resolves currency exchange rates for multi-currency
// ledgers. Providers are chained so a missing pair can fall back to a
// secondary source.
package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finledger/finledger/internal/domain"
)

// Provider returns the rate that converts one unit of from into to.
// Implementations return domain.ErrRateNotFound when they simply lack the
// pair and domain.ErrRateUnavailable when the source itself failed; the
// chain treats the two differently.
type Provider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Chain queries providers in order. A not-found moves to the next
// provider; an unavailable source is skipped but remembered, so callers
// can tell "nobody has this pair" from "a source was down".
type Chain []Provider

func (c Chain) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	sawUnavailable := false
	for _, p := range c {
		rate, err := p.Rate(ctx, from, to)
		switch {
		case err == nil:
			return rate, nil
		case errors.Is(err, domain.ErrRateNotFound):
			continue
		case errors.Is(err, domain.ErrRateUnavailable):
			sawUnavailable = true
			continue
		default:
			return decimal.Zero, err
		}
	}
	if sawUnavailable {
		return decimal.Zero, fmt.Errorf("%s/%s: %w", from, to, domain.ErrRateUnavailable)
	}
	return decimal.Zero, fmt.Errorf("%s/%s: %w", from, to, domain.ErrRateNotFound)
}

// Static is a fixed rate table keyed by "FROM/TO". The inverse pair is
// derived when only one direction is present.
type Static map[string]decimal.Decimal

func (s Static) Rate(_ context.Context, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := s[from+"/"+to]; ok {
		return rate, nil
	}
	if inv, ok := s[to+"/"+from]; ok && !inv.IsZero() {
		return decimal.NewFromInt(1).Div(inv), nil
	}
	return decimal.Zero, fmt.Errorf("%s/%s: %w", from, to, domain.ErrRateNotFound)
}

// Convert applies the provider's rate to an amount.
func Convert(ctx context.Context, p Provider, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	rate, err := p.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}
