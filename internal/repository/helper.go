package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ParseTime parses a date string in "2006-01-02" or RFC3339 format.
func ParseTime(str string) (time.Time, error) {
	returnTime, err := time.Parse("2006-01-02", str)
	if err != nil {
		returnTime, err = time.Parse(time.RFC3339, str)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse date: %w", err)
		}
	}
	return returnTime.UTC(), nil
}

// FormatTime renders a timestamp the way every repository stores it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseDecimal converts a TEXT column value into a decimal. Decimals are
// stored as strings so SQLite never coerces them into binary floats.
func ParseDecimal(str string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse decimal %q: %w", str, err)
	}
	return d, nil
}

// ParseNullDecimal converts a nullable TEXT column into a decimal pointer,
// returning nil for NULL.
func ParseNullDecimal(str sql.NullString) (*decimal.Decimal, error) {
	if !str.Valid {
		return nil, nil
	}
	d, err := ParseDecimal(str.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseNullTime converts a nullable date column into a time pointer,
// returning nil for NULL.
func ParseNullTime(str sql.NullString) (*time.Time, error) {
	if !str.Valid {
		return nil, nil
	}
	t, err := ParseTime(str.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
