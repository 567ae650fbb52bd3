package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in   string
		want Money
		err  error
	}{
		{"500", 50000, nil},
		{"200.5", 20050, nil},
		{"0.00", 0, nil},
		{"-12.34", -1234, nil},
		{"1.230", 123, nil},
		{"99999999.99", MaxMoney, nil},
		{"1.234", 0, ErrMoneyPlaces},
		{"123456789", 0, ErrMoneyMaxDigits},
		{"abc", 0, ErrMoneyFormat},
		{"", 0, ErrMoneyFormat},
		{"1e3", 0, ErrMoneyFormat},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMoney(tc.in)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "300.00", Money(30000).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "-0.50", Money(-50).String())
	assert.Equal(t, "-100.00", MustMoney("100").Sub(MustMoney("200")).String())
}

func TestMoneyJSON(t *testing.T) {
	var body struct {
		Owed Money `json:"owed"`
		Paid Money `json:"paid"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"owed":500,"paid":"200.00"}`), &body))
	assert.Equal(t, MustMoney("500"), body.Owed)
	assert.Equal(t, MustMoney("200"), body.Paid)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"owed":"500.00","paid":"200.00"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"owed":null}`), &body))
	assert.Error(t, json.Unmarshal([]byte(`{"owed":"1.999"}`), &body))
}

func TestMoneyScan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan([]byte("123.45")))
	assert.Equal(t, Money(12345), m)

	require.NoError(t, m.Scan(int64(7)))
	assert.Equal(t, Money(700), m)

	require.NoError(t, m.Scan(nil))
	assert.Equal(t, Money(0), m)

	assert.Error(t, m.Scan(true))

	v, err := MustMoney("42.1").Value()
	require.NoError(t, err)
	assert.Equal(t, "42.10", v)
}

func TestMoneyMessage(t *testing.T) {
	var m Money
	err := m.UnmarshalJSON([]byte(`"1.234"`))
	require.Error(t, err)
	assert.Equal(t, "Ensure that there are no more than 2 decimal places", MoneyMessage(err))

	err = m.UnmarshalJSON([]byte(`123456789`))
	require.Error(t, err)
	assert.Equal(t, "Ensure that there are no more than 10 digits in total", MoneyMessage(err))

	err = m.UnmarshalJSON([]byte(`"lots"`))
	require.Error(t, err)
	assert.Equal(t, "A valid number is required", MoneyMessage(err))
}
