package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/wagmibets/predictfolio/internal/metrics"
)

// ErrInvalidAddress is returned when an account address is not a valid
// ledger public key
var ErrInvalidAddress = errors.New("invalid account address")

// TokenAccountSource abstracts the ledger RPC for tests
type TokenAccountSource interface {
	GetTokenAccountsByOwner(ctx context.Context, owner, programID string) ([]TokenBalance, error)
}

// Scanner reads an account's token holdings across every supported token
// program and merges them into one list
type Scanner struct {
	client   TokenAccountSource
	programs []string
}

// NewScanner creates a scanner over the given token program IDs
func NewScanner(client TokenAccountSource, programs ...string) *Scanner {
	return &Scanner{
		client:   client,
		programs: programs,
	}
}

// ValidateAddress checks that addr is a well-formed 32-byte base58 public key
func ValidateAddress(addr string) error {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	return nil
}

// Scan returns every positive-quantity token holding of owner. The per-program
// scans run in parallel; a single program failing does not abort the scan,
// the account may legitimately hold nothing under that program, so we degrade
// to the variants that answered.
func (s *Scanner) Scan(ctx context.Context, owner string) ([]TokenBalance, error) {
	if err := ValidateAddress(owner); err != nil {
		return nil, err
	}

	results := make([][]TokenBalance, len(s.programs))

	var g errgroup.Group
	for i, program := range s.programs {
		i, program := i, program
		g.Go(func() error {
			balances, err := s.client.GetTokenAccountsByOwner(ctx, owner, program)
			if err != nil {
				log.Warn().
					Err(err).
					Str("owner", owner).
					Str("program", program).
					Msg("Token account scan degraded, skipping program")
				metrics.BalanceScanFailures.WithLabelValues(program).Inc()
				return nil
			}
			results[i] = balances
			return nil
		})
	}

	// Goroutines never return errors, only fill their own slot
	_ = g.Wait()

	var merged []TokenBalance
	for _, balances := range results {
		for _, b := range balances {
			if b.UIAmount.IsPositive() {
				merged = append(merged, b)
			}
		}
	}

	log.Debug().
		Str("owner", owner).
		Int("holdings", len(merged)).
		Msg("Balance scan complete")

	return merged, nil
}
