package service

import (
	"context"
	"errors"
	"time"
)

type SweepResult struct {
	ResetCodes    int64
	RefreshTokens int64
	Duration      time.Duration
}

// Sweeper deletes expired reset codes and refresh tokens.
type Sweeper struct {
	resets    *ResetCodeService
	tokens    *RefreshTokenService
	batchSize int
	logger    Logger
}

func NewSweeper(resets *ResetCodeService, tokens *RefreshTokenService, batchSize int, logger Logger) *Sweeper {
	return &Sweeper{resets: resets, tokens: tokens, batchSize: batchSize, logger: logger}
}

// Run sweeps both tables. A failure on one table does not stop the other;
// the returned error joins every failure.
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	started := time.Now()
	var (
		result SweepResult
		errs   []error
	)

	n, err := s.resets.SweepExpired(ctx)
	if err != nil {
		s.logger.Errorf("sweep: reset codes: %v", err)
		errs = append(errs, err)
	}
	result.ResetCodes = n

	n, err = s.tokens.SweepExpired(ctx, s.batchSize)
	if err != nil {
		s.logger.Errorf("sweep: refresh tokens: %v", err)
		errs = append(errs, err)
	}
	result.RefreshTokens = n
	result.Duration = time.Since(started)

	s.logger.Infof("sweep: deleted %d reset codes and %d refresh tokens in %s",
		result.ResetCodes, result.RefreshTokens, result.Duration)
	return result, errors.Join(errs...)
}
