package shared

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestCandleValidate(t *testing.T) {
	date := time.Date(2025, time.March, 3, 9, 15, 0, 0, IST)

	tests := []struct {
		name    string
		candle  Candle
		wantErr bool
	}{
		{
			name:   "valid candle",
			candle: Candle{Open: 10, High: 12, Low: 9, Close: 11, Volume: 100, Date: date},
		},
		{
			name:    "zero date",
			candle:  Candle{Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
			wantErr: true,
		},
		{
			name:    "low above high",
			candle:  Candle{Open: 10, High: 9, Low: 12, Close: 11, Volume: 100, Date: date},
			wantErr: true,
		},
		{
			name:    "close outside range",
			candle:  Candle{Open: 10, High: 12, Low: 9, Close: 13, Volume: 100, Date: date},
			wantErr: true,
		},
		{
			name:    "negative volume",
			candle:  Candle{Open: 10, High: 12, Low: 9, Close: 11, Volume: -1, Date: date},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.candle.Validate()
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCandleEnd(t *testing.T) {
	date := time.Date(2025, time.March, 3, 9, 15, 0, 0, IST)
	candle := Candle{Date: date}
	assert.Equal(t, candle.End(), date.Add(5*time.Minute))
}
