package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestPatchColumnsOnlySetFields(t *testing.T) {
	now := time.Now()
	cols := Patch{
		Status:      Ptr(StatusCompleted),
		ResultCode:  Ptr("0"),
		CompletedAt: &now,
	}.Columns()

	assert.Len(t, cols, 3)
	assert.Equal(t, StatusCompleted, cols["status"])
	assert.Equal(t, "0", cols["result_code"])
	assert.NotContains(t, cols, "mpesa_receipt_number")

	assert.Empty(t, Patch{}.Columns())
}

func TestExpectedAmount(t *testing.T) {
	p := &Payment{Amount: decimal.RequireFromString("9.50")}
	assert.True(t, p.ExpectedAmount().Equal(decimal.RequireFromString("9.50")))

	p.RequestedAmount = decimal.NewNullDecimal(decimal.NewFromInt(10))
	assert.True(t, p.ExpectedAmount().Equal(decimal.NewFromInt(10)))
}
