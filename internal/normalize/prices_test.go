package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/region-data-service/internal/domain"
)

const redfinTSV = "region\tcounty\tmedian_sale_price\tmedian_rent\tperiod_end\n" +
	"Zip Code: 75035\tDallas County\t$400,000\t2,100\t2024-04-30\n" +
	"75035\tDallas County\t420000\t\t2024-05-31\n" +
	"75201\tHarris County\t500000\t\t2024-06-30\n" +
	"7520\tDallas County\t300000\t\t2024-03-31\n" +
	"75002\tCollin County\t0\t\t2024-03-31\n" +
	"75002\tCollin County\tn/a\t\t2024-03-31\n" +
	"75024\tCollin County\t550000\t\t\n"

func TestPrices_AggregatesPerZIP(t *testing.T) {
	freezeClock(t)
	patches, err := NewPrices(nil, nil, nil).Normalize([]byte(redfinTSV))
	require.NoError(t, err)
	require.Equal(t, []string{"75024", "75035"}, zips(patches))

	frisco := patches[1]
	assert.Equal(t, domain.CategoryPrices, frisco.Category)
	assert.Equal(t, 410000.0, frisco.Fields[domain.FieldMedianSalePrice])
	assert.Equal(t, 2100.0, frisco.Fields[domain.FieldRentMedian])
	assert.Equal(t, "2024-05", frisco.Fields[domain.FieldPriceUpdatedAt], "max date across kept rows")
	assert.Equal(t, []string{SourceRedfin}, frisco.Sources)
	require.NoError(t, frisco.Validate())

	plano := patches[0]
	assert.Equal(t, 550000.0, plano.Fields[domain.FieldMedianSalePrice])
	assert.Equal(t, "2024-05", plano.Fields[domain.FieldPriceUpdatedAt], "stamp is batch-wide")
	_, hasRent := plano.Fields[domain.FieldRentMedian]
	assert.False(t, hasRent, "rent left absent when no row carried one")
}

func TestPrices_TabDelimitedBlankPriceIsDropped(t *testing.T) {
	freezeClock(t)
	payload := "region\tcounty\tmedian_sale_price\tmedian_rent\tperiod_end\n" +
		"75035\tDallas County\t\t2500\t2024-05-31\n" +
		"75201\tDallas County\t500000\t\t2024-04-30\n"
	patches, err := NewPrices(nil, nil, nil).Normalize([]byte(payload))
	require.NoError(t, err)
	require.Equal(t, []string{"75201"}, zips(patches), "blank price is not read from the rent column")
	assert.Equal(t, 500000.0, patches[0].Fields[domain.FieldMedianSalePrice])
	assert.NotContains(t, patches[0].Fields, domain.FieldRentMedian)
	assert.Equal(t, "2024-04", patches[0].Fields[domain.FieldPriceUpdatedAt])
}

func TestPrices_StoresPlainMean(t *testing.T) {
	patches, err := NewPrices(nil, nil, nil).Normalize([]byte("zip,county,price\n75035,Dallas,400000\n75035,Dallas,400001\n"))
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, 400000.5, patches[0].Fields[domain.FieldMedianSalePrice])
}

func TestPrices_NoCountyColumnUsesKnownZIPs(t *testing.T) {
	freezeClock(t)
	ref := fakeRef{centroids: []Centroid{{ZIP: "75035"}}}
	patches, err := NewPrices(ref, nil, nil).Normalize([]byte("zip,median_sale_price\n75035,300000\n75999,100000\n"))
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, "75035", patches[0].ZIP)
	assert.Equal(t, "2024-07", patches[0].Fields[domain.FieldPriceUpdatedAt], "current month without dates")
}

func TestPrices_HeadersAreCaseSensitive(t *testing.T) {
	patches, err := NewPrices(nil, nil, nil).Normalize([]byte("ZIP,Median_Sale_Price,county\n75035,300000,Dallas\n"))
	require.NoError(t, err)
	assert.Empty(t, patches)
}

func TestPrices_CustomCounties(t *testing.T) {
	payload := "zip,county,price\n75035,Collin,300000\n77002,Harris,200000\n"
	patches, err := NewPrices(nil, []string{"Harris"}, nil).Normalize([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, []string{"77002"}, zips(patches))
}

func TestPrices_EmptyPayload(t *testing.T) {
	patches, err := NewPrices(nil, nil, nil).Normalize(nil)
	require.NoError(t, err)
	assert.Empty(t, patches)
}

func TestParseMoney(t *testing.T) {
	v, ok := parseMoney("$1,234,567.5")
	require.True(t, ok)
	assert.Equal(t, 1234567.5, v)

	_, ok = parseMoney("")
	assert.False(t, ok)
	_, ok = parseMoney("NaN")
	assert.False(t, ok)
}
