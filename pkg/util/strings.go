package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses s or returns def if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// ExchangeSymbol turns "ETH/USDT" or "eth-usdt" into "ETHUSDT".
func ExchangeSymbol(symbol string) string {
	r := strings.NewReplacer("/", "", "-", "", "_", "", " ", "")
	return strings.ToUpper(r.Replace(symbol))
}
