package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPayout(t *testing.T) {
	payout, commission := SplitPayout(50000)
	assert.Equal(t, int64(45000), payout)
	assert.Equal(t, int64(5000), commission)

	// Комиссия округляется вниз, остаток копеек достаётся исполнителю.
	payout, commission = SplitPayout(99)
	assert.Equal(t, int64(90), payout)
	assert.Equal(t, int64(9), commission)
	assert.Equal(t, int64(99), payout+commission, "выплата и комиссия вместе равны удержанной сумме")

	payout, commission = SplitPayout(0)
	assert.Zero(t, payout)
	assert.Zero(t, commission)
}

func TestRefundAmount(t *testing.T) {
	// Полный возврат равен удержанной сумме без комиссии.
	assert.Equal(t, int64(50000), RefundAmount(50000, 100))
	assert.Equal(t, int64(25000), RefundAmount(50000, 50))
	assert.Equal(t, int64(0), RefundAmount(50000, 0))

	// Округление вниз на некруглых долях.
	assert.Equal(t, int64(33), RefundAmount(101, 33))
}

func TestToCentsRoundTrip(t *testing.T) {
	assert.Equal(t, int64(150050), ToCents(1500.50))
	assert.Equal(t, 1500.50, FromCents(150050))
}
