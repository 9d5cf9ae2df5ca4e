package models

// Requests for the forecasting HTTP endpoints.

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Days   int    `query:"days" json:"days" default:"1" validate:"oneof=1 7 30"`
}

type ForecastRequest struct {
	Symbol   string `query:"symbol" json:"symbol"`
	Horizons string `query:"horizons" json:"horizons"`
}

type EvalSeriesRequest struct {
	Limit int `query:"limit" json:"limit" default:"200" validate:"gte=0,lte=100000"`
}

// CandleDTO is the transport shape of a candle.
type CandleDTO struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type HistoryResponse struct {
	Symbol    string      `json:"symbol"`
	Timeframe string      `json:"timeframe"`
	Days      int         `json:"days"`
	Data      []CandleDTO `json:"data"`
}

// EvalPointDTO is the transport shape of an evaluation row.
type EvalPointDTO struct {
	Timestamp string  `json:"timestamp"`
	YTrue     float64 `json:"y_true"`
	YLGBM     float64 `json:"y_lgbm"`
	YTCN      float64 `json:"y_tcn"`
	YMean     float64 `json:"y_mean"`
	YWMean    float64 `json:"y_wmean"`
	YStack    float64 `json:"y_stack"`
}

type EvalSeriesResponse struct {
	Data []EvalPointDTO `json:"data"`
}
