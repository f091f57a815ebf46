package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tradelock/internal/models"
)

func TestCommission(t *testing.T) {
	tests := []struct {
		amount int64
		want   int64
	}{
		{1000, 20},
		{1025, 21},
		{1024, 20},
		{18500000, 370000},
		{999999, 20000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Commission(tt.amount), "amount %d", tt.amount)
	}
}

func TestShares(t *testing.T) {
	tr := models.Trade{CommissionAmount: 21}

	tr.CommissionType = models.CommissionCreator
	assert.Equal(t, models.CommissionShares{Creator: 21}, tr.Shares())

	tr.CommissionType = models.CommissionParticipant
	assert.Equal(t, models.CommissionShares{Participant: 21}, tr.Shares())

	tr.CommissionType = models.CommissionSplit
	assert.Equal(t, models.CommissionShares{Creator: 10, Participant: 11}, tr.Shares())
}

func TestShareURLAndIDs(t *testing.T) {
	assert.Equal(t, "https://t.me/bot?startapp=abc", ShareURL("bot", "abc"))
	assert.Empty(t, ShareURL("", "abc"))

	link, err := NewSecretLink()
	assert.NoError(t, err)
	other, _ := NewSecretLink()
	assert.NotEqual(t, link, other)

	var g idGenerator
	now := time.UnixMilli(1000)
	assert.Equal(t, int64(1000), g.next(now))
	assert.Equal(t, int64(1001), g.next(now))
	assert.Equal(t, int64(1002), g.next(time.UnixMilli(900)))
}
