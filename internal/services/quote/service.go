// Package quote chains price providers so a secondary source answers when
// the primary one has no price.
package quote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
)

// Source is one provider in the chain.
type Source struct {
	Name   string
	Oracle interfaces.PriceOracle
	// OwnCredential makes the source ignore the caller's credential and
	// use Key instead.
	OwnCredential bool
	Key           string
}

// Service implements PriceOracle over an ordered list of sources.
type Service struct {
	sources []Source
	logger  *common.Logger
}

// Ensure Service implements PriceOracle
var _ interfaces.PriceOracle = (*Service)(nil)

// NewService creates a fallback chain. Sources are tried in order.
func NewService(logger *common.Logger, sources ...Source) *Service {
	return &Service{sources: sources, logger: logger}
}

func (s *Service) credential(src Source, credential string) string {
	if src.OwnCredential {
		return src.Key
	}
	return credential
}

// CurrentPrice returns the first price any source reports.
func (s *Service) CurrentPrice(ctx context.Context, ticker, credential string) (decimal.Decimal, bool) {
	for i, src := range s.sources {
		if p, ok := src.Oracle.CurrentPrice(ctx, ticker, s.credential(src, credential)); ok {
			s.logFallback(i, src, ticker)
			return p, true
		}
	}
	return decimal.Zero, false
}

// HistoricalClose returns the first close any source reports for date.
func (s *Service) HistoricalClose(ctx context.Context, ticker string, date time.Time, credential string) (decimal.Decimal, bool) {
	for i, src := range s.sources {
		if p, ok := src.Oracle.HistoricalClose(ctx, ticker, date, s.credential(src, credential)); ok {
			s.logFallback(i, src, ticker)
			return p, true
		}
	}
	return decimal.Zero, false
}

func (s *Service) logFallback(i int, src Source, ticker string) {
	if i == 0 {
		return
	}
	s.logger.Info().
		Str("ticker", ticker).
		Str("source", src.Name).
		Msg("Price served by fallback source")
}
