package stripe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `id,Type,Description,Amount,Fee,Net,Currency,Created (UTC),Available On (UTC),Transfer
txn_1,charge,Subscription creation,19.00,2.75,16.25,usd,2024-03-01 17:22:05,2024-03-04,po_1
po_1,payout,STRIPE PAYOUT,-16.25,0.00,-16.25,usd,2024-03-04,,
`

func TestReadCSV(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "txn_1", records[0].ID)
	assert.Equal(t, "charge", records[0].Type)
	assert.Equal(t, "19.00", records[0].Amount)
	assert.Equal(t, "po_1", records[0].Transfer)

	assert.Equal(t, "po_1", records[1].ID)
	assert.Equal(t, "", records[1].AvailableDate)
}

func TestReadCSVReorderedColumns(t *testing.T) {
	csv := `Type,id,Created (UTC),Amount,Fee,Net,Currency
charge,txn_1,2024-03-01,19.00,2.75,16.25,usd
`
	records, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "txn_1", records[0].ID)
	assert.Equal(t, "charge", records[0].Type)
	assert.Equal(t, "", records[0].Transfer)
}

func TestReadCSVMissingColumn(t *testing.T) {
	csv := `id,Type,Description
txn_1,charge,whatever
`
	_, err := ReadCSV(strings.NewReader(csv))
	assert.ErrorContains(t, err, "missing column")
}

func TestReadCSVHeaderOnly(t *testing.T) {
	csv := "id,Type,Amount,Fee,Net,Currency,Created (UTC)\n"
	records, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Empty(t, records)
}
