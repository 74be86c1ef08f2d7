package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItemJSON_KindDispatch(t *testing.T) {
	raw := `[
		{"item":{"id":1,"name":"Apples","price":2,"stock_quantity":10,"category":"fruit"},"quantity":3,"kind":"product"},
		{"item":{"id":1,"name":"Fruit Hamper","price":40,"stock_quantity":2},"quantity":1,"kind":"hamper"},
		{"item":{"id":2,"name":"Bread","price":2.5,"stock_quantity":5},"quantity":2}
	]`

	var lines []LineItem
	require.NoError(t, json.Unmarshal([]byte(raw), &lines))
	require.Len(t, lines, 3)

	assert.Equal(t, Product{ID: 1, Name: "Apples", Price: 2, StockQuantity: 10, Category: "fruit"}, lines[0].Item)
	assert.Equal(t, Hamper{ID: 1, Name: "Fruit Hamper", Price: 40, StockQuantity: 2}, lines[1].Item)
	// Позиция без kind считается обычным товаром.
	assert.Equal(t, KindProduct, lines[2].Item.Kind())

	assert.NotEqual(t, lines[0].Key(), lines[1].Key())
	assert.Equal(t, 51.0, Total(lines))
}

func TestLineItemJSON_Errors(t *testing.T) {
	var l LineItem
	err := json.Unmarshal([]byte(`{"item":{"id":1},"quantity":1,"kind":"voucher"}`), &l)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = json.Marshal(LineItem{Quantity: 1})
	assert.Error(t, err)
}

func TestLineItemJSON_WritesKind(t *testing.T) {
	out, err := json.Marshal(LineItem{Item: Hamper{ID: 4, Name: "Tea Hamper", Price: 30, StockQuantity: 1}, Quantity: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"item":{"id":4,"name":"Tea Hamper","price":30,"stock_quantity":1},"quantity":1,"kind":"hamper"}`, string(out))
}
