package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisaflow/paisaflow/internal/model"
)

func TestReadTransactionsCSV(t *testing.T) {
	csv := strings.Join([]string{
		"id,user_id,date,amount,direction,description,merchant,channel,mcc",
		"t1,u1,2025-06-01,450.00,debit,UPI SWIGGY BANGALORE,SWIGGY,UPI,",
		",u1,2025-06-02,82000.00,credit,SALARY CREDIT ACME,,,",
	}, "\n")

	transactions, err := readTransactionsCSV(strings.NewReader(csv), "")
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	first := transactions[0]
	assert.Equal(t, "t1", first.ID)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, 450.00, first.Amount)
	assert.Equal(t, model.DirectionDebit, first.Direction)
	assert.Equal(t, "SWIGGY", first.MerchantRaw)
	assert.Equal(t, model.ChannelUPI, first.Channel)

	// Rows without an id get a generated one.
	second := transactions[1]
	assert.NotEmpty(t, second.ID)
	assert.Equal(t, model.DirectionCredit, second.Direction)
}

func TestReadTransactionsCSVDefaultUser(t *testing.T) {
	csv := strings.Join([]string{
		"date,amount,direction,description",
		"2025-06-01,100.00,debit,POS PURCHASE",
	}, "\n")

	transactions, err := readTransactionsCSV(strings.NewReader(csv), "u9")
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "u9", transactions[0].UserID)

	_, err = readTransactionsCSV(strings.NewReader(csv), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user")
}

func TestReadTransactionsCSVMissingColumn(t *testing.T) {
	csv := "date,amount,description\n2025-06-01,100.00,POS PURCHASE\n"

	_, err := readTransactionsCSV(strings.NewReader(csv), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "direction")
}
