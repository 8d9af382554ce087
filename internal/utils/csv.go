package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"candleflow/internal/domain"
)

// WriteCandlesToCSV dumps a candle series for offline analysis.
func WriteCandlesToCSV(candles []*domain.Candle, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"})

	for _, c := range candles {
		writer.Write([]string{
			c.OpenTime.Format(time.RFC3339),
			c.CloseTime.Format(time.RFC3339),
			c.Symbol,
			string(c.Interval),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}

// ReadCandlesFromCSV loads a series previously written by WriteCandlesToCSV.
func ReadCandlesFromCSV(filename string) ([]*domain.Candle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	candles := make([]*domain.Candle, 0, len(rows)-1)
	for i, row := range rows[1:] { // skip header
		if len(row) != 9 {
			return nil, fmt.Errorf("row %d: expected 9 columns, got %d", i+2, len(row))
		}
		openTime, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing open_time: %w", i+2, err)
		}
		closeTime, err := time.Parse(time.RFC3339, row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing close_time: %w", i+2, err)
		}
		candle := &domain.Candle{
			OpenTime:  openTime,
			CloseTime: closeTime,
			Symbol:    row[2],
			Interval:  domain.Interval(row[3]),
		}
		for col, dst := range map[int]*float64{4: &candle.Open, 5: &candle.High, 6: &candle.Low, 7: &candle.Close, 8: &candle.Volume} {
			v, err := strconv.ParseFloat(row[col], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+2, col, err)
			}
			*dst = v
		}
		candles = append(candles, candle)
	}
	return candles, nil
}
