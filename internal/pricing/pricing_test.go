package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name        string
		unitPrice   int64
		quantity    int
		deliveryFee int64
		wantSub     int64
		wantTotal   int64
	}{
		{"single unit", 1200, 1, 50, 1200, 1250},
		{"multiple units, fee once", 1200, 3, 50, 3600, 3650},
		{"zero fee", 500, 2, 0, 1000, 1000},
		{"large order", 250000, 40, 60000, 10000000, 10060000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Compute(tt.unitPrice, tt.quantity, tt.deliveryFee)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, q.SubtotalDzd)
			assert.Equal(t, tt.wantTotal, q.TotalDzd)
			assert.Equal(t, q.SubtotalDzd+q.DeliveryFeeDzd, q.TotalDzd)
		})
	}
}

func TestComputeRejectsInvalidInputs(t *testing.T) {
	_, err := Compute(0, 1, 50)
	assert.Error(t, err)

	_, err = Compute(-100, 1, 50)
	assert.Error(t, err)

	_, err = Compute(1200, 0, 50)
	assert.Error(t, err)

	_, err = Compute(1200, -2, 50)
	assert.Error(t, err)

	_, err = Compute(1200, 1, -1)
	assert.Error(t, err)
}
