package pricing

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

func TestEstimate_UnusedVolumeScenario(t *testing.T) {
	est := NewEstimator(Sample())
	vol := models.Resource{
		ID:       "vol-1",
		Kind:     models.KindVolume,
		Provider: models.ProviderAWS,
		Region:   "us-east-1",
		SizeGB:   models.Float64(100),
		Tags:     map[string]string{},
	}

	got := est.Estimate(vol)
	require.NotNil(t, got)
	assert.True(t, got.Equal(decimal.RequireFromString("10.00")), "got %s", got)
	assert.Equal(t, "10.00", got.StringFixed(2))
}

func TestEstimate_MostSpecificEntryWins(t *testing.T) {
	est := NewEstimator(Sample())
	vol := models.Resource{
		Kind:       models.KindVolume,
		Provider:   models.ProviderAWS,
		SizeGB:     models.Float64(100),
		Attributes: map[string]any{"volume_type": "gp3"},
	}
	got := est.Estimate(vol)
	require.NotNil(t, got)
	assert.Equal(t, "8.00", got.StringFixed(2))
}

func TestEstimate_Units(t *testing.T) {
	table := &Table{Version: "t1", Currency: "USD", Prices: []Entry{
		{Provider: models.ProviderGCP, Kind: models.KindAddress, Unit: UnitHour, Price: decimal.RequireFromString("0.01")},
		{Provider: models.ProviderGCP, Kind: models.KindSnapshot, Unit: UnitMonth, Price: decimal.RequireFromString("1.50")},
		{Provider: models.ProviderGCP, Kind: models.KindSnapshot, Region: "europe-west1", Unit: UnitMonth, Price: decimal.RequireFromString("2")},
	}}
	est := NewEstimator(table)

	addr := est.Estimate(models.Resource{Provider: models.ProviderGCP, Kind: models.KindAddress})
	require.NotNil(t, addr)
	assert.Equal(t, "7.30", addr.StringFixed(2))

	us := est.Estimate(models.Resource{Provider: models.ProviderGCP, Kind: models.KindSnapshot, Region: "us-central1"})
	require.NotNil(t, us)
	assert.Equal(t, "1.50", us.StringFixed(2))

	eu := est.Estimate(models.Resource{Provider: models.ProviderGCP, Kind: models.KindSnapshot, Region: "europe-west1"})
	require.NotNil(t, eu)
	assert.Equal(t, "2.00", eu.StringFixed(2))
}

func TestEstimate_NoModel(t *testing.T) {
	est := NewEstimator(Sample())
	assert.Nil(t, est.Estimate(models.Resource{Provider: models.ProviderAWS, Kind: models.KindIAMUser}))
	// gb-month entry but unknown size
	assert.Nil(t, est.Estimate(models.Resource{Provider: models.ProviderAWS, Kind: models.KindVolume}))
	// instance entries all need a matching instance_type
	assert.Nil(t, est.Estimate(models.Resource{
		Provider: models.ProviderAWS, Kind: models.KindInstance,
		Attributes: map[string]any{"instance_type": "x9.huge"},
	}))
}

func TestSample_IsLabelled(t *testing.T) {
	s := Sample()
	assert.Equal(t, SampleVersion, s.Version)
	assert.Equal(t, "USD", s.Currency)
	assert.NotEmpty(t, s.Prices)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no version":     "currency: USD\nprices: []\n",
		"bad unit":       "version: v\nprices:\n  - {provider: aws, kind: volume, unit: day, price: 1}\n",
		"bad provider":   "version: v\nprices:\n  - {provider: oracle, kind: volume, unit: month, price: 1}\n",
		"bad kind":       "version: v\nprices:\n  - {provider: aws, kind: router, unit: month, price: 1}\n",
		"negative price": "version: v\nprices:\n  - {provider: aws, kind: volume, unit: month, price: -1}\n",
		"unknown field":  "version: v\nregion: us\n",
		"bad price":      "version: v\nprices:\n  - {provider: aws, kind: volume, unit: month, price: cheap}\n",
	}
	for name, doc := range cases {
		_, err := Parse(strings.NewReader(doc))
		assert.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"2024-06\"\nprices:\n  - {provider: aws, kind: volume, unit: gb-month, price: 0.09}\n"), 0o600))

	t.Run("embedded sample by default", func(t *testing.T) {
		tbl, err := Load("", "")
		require.NoError(t, err)
		assert.Equal(t, SampleVersion, tbl.Version)
	})

	t.Run("file with matching version", func(t *testing.T) {
		tbl, err := Load(path, "2024-06")
		require.NoError(t, err)
		assert.Equal(t, "USD", tbl.Currency)
		require.Len(t, tbl.Prices, 1)
		assert.True(t, tbl.Prices[0].Price.Equal(decimal.RequireFromString("0.09")))
	})

	t.Run("version mismatch is a config error", func(t *testing.T) {
		_, err := Load(path, "2023-01")
		var cfgErr *auditerr.ConfigError
		require.True(t, errors.As(err, &cfgErr), "got %v", err)
		assert.Equal(t, "cost_price_table_version", cfgErr.Field)
	})

	t.Run("sample version mismatch", func(t *testing.T) {
		_, err := Load("", "2024-06")
		var cfgErr *auditerr.ConfigError
		assert.True(t, errors.As(err, &cfgErr))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"), "")
		var cfgErr *auditerr.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "price_table", cfgErr.Field)
	})
}
