package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
)

// historyPadding is the number of extra candles requested beyond the window.
const historyPadding = 20

// HistoryUseCase returns recent candles for charting.
type HistoryUseCase struct {
	source        domrepo.CandleSource
	timeframe     domrepo.Timeframe
	defaultSymbol string
}

func NewHistoryUseCase(source domrepo.CandleSource, tf domrepo.Timeframe, defaultSymbol string) *HistoryUseCase {
	return &HistoryUseCase{source: source, timeframe: tf, defaultSymbol: defaultSymbol}
}

type HistoryResult struct {
	Symbol    string
	Timeframe string
	Days      int
	Candles   models.Series
}

// CandlesForDays returns how many candles of tf cover days.
func CandlesForDays(days int, tf domrepo.Timeframe) (int, error) {
	hours, err := tf.Hours()
	if err != nil {
		return 0, err
	}
	return int(math.Ceil(float64(days) * 24 / hours)), nil
}

func (uc *HistoryUseCase) GetHistory(ctx context.Context, symbol string, days int) (*HistoryResult, error) {
	if days != 1 && days != 7 && days != 30 {
		return nil, fmt.Errorf("%w: days must be 1, 7 or 30", models.ErrMalformedInput)
	}
	if symbol == "" {
		symbol = uc.defaultSymbol
	}
	n, err := CandlesForDays(days, uc.timeframe)
	if err != nil {
		return nil, err
	}
	series, err := uc.source.FetchRecentCandles(ctx, symbol, uc.timeframe, n+historyPadding)
	if err != nil {
		if !errors.Is(err, models.ErrUpstreamData) {
			err = fmt.Errorf("%w: %w", models.ErrUpstreamData, err)
		}
		return nil, fmt.Errorf("get history: %w", err)
	}
	return &HistoryResult{
		Symbol:    symbol,
		Timeframe: string(uc.timeframe),
		Days:      days,
		Candles:   series.Tail(n),
	}, nil
}
