package pbu

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGenerateCompactOrderID_RoundTrips(t *testing.T) {
	price := decimal.NewFromFloat(100.5)
	side := "SELL"
	decimals := 2

	oid := GenerateCompactOrderID(price, side, decimals)
	p, s, ok := ParseCompactOrderID(oid, decimals)

	assert.True(t, ok)
	assert.True(t, price.Equal(p))
	assert.Equal(t, side, s)
}

func TestGenerateCompactOrderID_DiffersBySideAndPrice(t *testing.T) {
	price := decimal.NewFromFloat(100.5)
	oidBuy := GenerateCompactOrderID(price, "BUY", 2)
	oidSell := GenerateCompactOrderID(price, "SELL", 2)
	assert.NotEqual(t, oidBuy, oidSell)
}

func TestAddBrokerPrefixTruncationSafety(t *testing.T) {
	price1 := decimal.NewFromFloat(100.5)
	price2 := decimal.NewFromFloat(100.6)
	decimals := 2

	oid1 := GenerateCompactOrderID(price1, "BUY", decimals)
	oid2 := GenerateCompactOrderID(price2, "BUY", decimals)
	assert.NotEqual(t, oid1, oid2)

	prefix := "x-zdfVM8vY"
	b1 := AddBrokerPrefix("binance", oid1)
	b2 := AddBrokerPrefix("binance", oid2)

	assert.NotEqual(t, b1, b2, "truncated ids should still be unique")
	assert.True(t, len(b1) <= 36)
	assert.True(t, len(b2) <= 36)
	assert.True(t, strings.HasPrefix(b1, prefix))
	assert.True(t, strings.HasPrefix(b2, prefix))

	p1, s1, ok1 := ParseCompactOrderID(b1, decimals)
	assert.True(t, ok1)
	assert.True(t, price1.Equal(p1))
	assert.Equal(t, "BUY", s1)

	p2, s2, ok2 := ParseCompactOrderID(b2, decimals)
	assert.True(t, ok2)
	assert.True(t, price2.Equal(p2))
	assert.Equal(t, "BUY", s2)
}
