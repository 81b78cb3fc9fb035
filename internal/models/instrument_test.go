package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFundingInstrument(t *testing.T) {
	assert.Nil(t, NewFundingInstrument("", " ", ""))

	inst := NewFundingInstrument(" 4242-4242 4242 4242 ", "12/30 ", "123")
	require.NotNil(t, inst)
	assert.Equal(t, "4242424242424242", inst.CardNumber)
	assert.Equal(t, "12/30", inst.Expiry)
	assert.Equal(t, "4242", inst.Last4())
	assert.NotContains(t, inst.String(), "424242424242")
	assert.NotContains(t, inst.String(), "123")
}

func TestFundingInstrument_ExpiresAt(t *testing.T) {
	inst := &FundingInstrument{Expiry: "12/30"}
	expiresAt, err := inst.ExpiresAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC), expiresAt)

	_, err = (&FundingInstrument{Expiry: "2030-12"}).ExpiresAt()
	assert.Error(t, err)
}

func TestFundingInstrument_IsEmpty(t *testing.T) {
	var inst *FundingInstrument
	assert.True(t, inst.IsEmpty())
	assert.True(t, (&FundingInstrument{}).IsEmpty())
	assert.False(t, (&FundingInstrument{CVV: "1"}).IsEmpty())
}

func TestModeFromTestFlag(t *testing.T) {
	assert.Equal(t, AccountModeTest, ModeFromTestFlag(true))
	assert.Equal(t, AccountModeLive, ModeFromTestFlag(false))
}
