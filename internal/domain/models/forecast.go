package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// StepForecast holds the three predictions produced for one recursive step.
type StepForecast struct {
	Time  time.Time // timestamp of the synthesized candle
	PredA float64   // tree model
	PredB float64   // sequence model
	Fused float64   // stacking model
}

// HorizonResult is the terminal prediction for one requested horizon.
type HorizonResult struct {
	RequestedHours int       `json:"requested_hours"`
	StepsUsed      int       `json:"steps_used"`
	Prediction     float64   `json:"prediction"`
	TargetTime     time.Time `json:"-"`
}

// ForecastReport is the outcome of one forecast request.
type ForecastReport struct {
	Symbol      string
	Timeframe   string
	GeneratedAt time.Time
	LastCandle  time.Time
	Horizons    []HorizonResult
	Cached      bool
}

// ForecastEvent is the archived form of a forecast, one per horizon.
type ForecastEvent struct {
	Symbol      string    `json:"symbol"`
	Timeframe   string    `json:"timeframe"`
	GeneratedAt time.Time `json:"generated_at"`
	LastCandle  time.Time `json:"last_candle"`
	LastClose   float64   `json:"last_close"`
	Hours       int       `json:"hours"`
	StepsUsed   int       `json:"steps_used"`
	Prediction  float64   `json:"prediction"`
	TargetTime  time.Time `json:"target_time"`
}

// Events flattens the report into archive events.
func (r ForecastReport) Events(lastClose float64) []ForecastEvent {
	out := make([]ForecastEvent, 0, len(r.Horizons))
	for _, h := range r.Horizons {
		out = append(out, ForecastEvent{
			Symbol:      r.Symbol,
			Timeframe:   r.Timeframe,
			GeneratedAt: r.GeneratedAt,
			LastCandle:  r.LastCandle,
			LastClose:   lastClose,
			Hours:       h.RequestedHours,
			StepsUsed:   h.StepsUsed,
			Prediction:  h.Prediction,
			TargetTime:  h.TargetTime,
		})
	}
	return out
}

// HorizonEntry is the transport shape of one horizon result.
type HorizonEntry struct {
	StepsUsed       int     `json:"steps_used"`
	PredStack       float64 `json:"pred_stack"`
	TargetTimeUTC   string  `json:"target_time_utc"`
	TargetTimeLocal string  `json:"target_time_local"`
}

// HorizonKey is the map key used for a horizon ("24h").
func HorizonKey(hours int) string { return strconv.Itoa(hours) + "h" }

// OrderedHorizons marshals as a JSON object whose keys keep insertion order.
type OrderedHorizons struct {
	Keys   []string
	Values map[string]HorizonEntry
}

// Set appends or replaces an entry.
func (o *OrderedHorizons) Set(key string, v HorizonEntry) {
	if o.Values == nil {
		o.Values = make(map[string]HorizonEntry)
	}
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = v
}

func (o OrderedHorizons) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ForecastResponse is the /forecast payload.
type ForecastResponse struct {
	Symbol           string          `json:"symbol"`
	Timeframe        string          `json:"timeframe"`
	GeneratedAtUTC   string          `json:"generated_at_utc"`
	GeneratedAtLocal string          `json:"generated_at_local"`
	LastCandleUTC    string          `json:"last_candle_utc"`
	Results          OrderedHorizons `json:"results"`
}
