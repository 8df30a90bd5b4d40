package units

import "fmt"

// Lots is an order book's lot granularity, read from the market account.
type Lots struct {
	BaseLotSize  int64 `json:"base_lot_size"`
	QuoteLotSize int64 `json:"quote_lot_size"`

	// token decimals recorded on the market
	BaseDecimals  int32 `json:"base_decimals"`
	QuoteDecimals int32 `json:"quote_decimals"`
}

func (l Lots) Validate() error {
	if l.BaseLotSize <= 0 || l.QuoteLotSize <= 0 {
		return fmt.Errorf("invalid lot sizes base=%d quote=%d", l.BaseLotSize, l.QuoteLotSize)
	}
	return nil
}

// BaseLots converts base units to whole base lots, truncating.
func (l Lots) BaseLots(smallest uint64) (int64, error) {
	if l.BaseLotSize <= 0 {
		return 0, fmt.Errorf("invalid base lot size %d", l.BaseLotSize)
	}
	return toLots(smallest, l.BaseLotSize), nil
}

// QuoteLots converts quote units to whole quote lots, truncating.
func (l Lots) QuoteLots(smallest uint64) (int64, error) {
	if l.QuoteLotSize <= 0 {
		return 0, fmt.Errorf("invalid quote lot size %d", l.QuoteLotSize)
	}
	return toLots(smallest, l.QuoteLotSize), nil
}

func toLots(smallest uint64, size int64) int64 {
	n := smallest / uint64(size)
	if n > uint64(1<<63-1) {
		return 1<<63 - 1
	}
	return int64(n)
}
