package handlers

import (
	"errors"
	"strconv"

	"github.com/shopspring/decimal"

	"fintrack/internal/money"
)

var errInvalidAmount = errors.New("invalid amount")
var errInvalidRate = errors.New("invalid rate")

// parseAmountMinor converts a major-unit string from the request body
// into positive minor units. This is the single ingress conversion for
// money values; everything past this point is integer arithmetic.
func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

// parseSignedAmountMinor is the variant for account balances, which
// may legitimately be negative (loans, overdrafts).
func parseSignedAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errInvalidRate
	}
	if rate.Exponent() < -6 {
		return decimal.Zero, errInvalidRate
	}
	return rate, nil
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseEpochMillis(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.New("invalid date")
	}
	return &value, nil
}
