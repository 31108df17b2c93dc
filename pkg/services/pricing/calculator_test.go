package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/de-tools/costpulse/pkg/models/domain"
)

func TestCalculator_DBURate(t *testing.T) {
	c := NewCalculator(nil)

	assert.Equal(t, 0.15, c.DBURate("JOBS_COMPUTE"))
	assert.Equal(t, 0.22, c.DBURate("SQL_COMPUTE"))
	assert.Equal(t, defaultDBURate, c.DBURate("BRAND_NEW_SKU"))
}

func TestCalculator_DBUCost(t *testing.T) {
	c := NewCalculator(nil)

	t.Run("list price", func(t *testing.T) {
		assert.InDelta(t, 15.0, c.DBUCost("JOBS_COMPUTE", 100, false), 0.001)
	})

	t.Run("photon variant when one exists", func(t *testing.T) {
		assert.InDelta(t, 30.0, c.DBUCost("JOBS_COMPUTE", 100, true), 0.001)
	})

	t.Run("photon without a variant keeps the base rate", func(t *testing.T) {
		assert.InDelta(t, 22.0, c.DBUCost("SQL_COMPUTE", 100, true), 0.001)
	})

	t.Run("unknown sku falls back to the default rate", func(t *testing.T) {
		assert.InDelta(t, 100*defaultDBURate, c.DBUCost("BRAND_NEW_SKU", 100, false), 0.001)
	})

	t.Run("custom rate overrides list price", func(t *testing.T) {
		discounted := NewCalculator(map[string]float64{"JOBS_COMPUTE": 0.10})
		assert.InDelta(t, 10.0, discounted.DBUCost("JOBS_COMPUTE", 100, false), 0.001)
	})
}

func TestCalculator_ClusterHourlyCost(t *testing.T) {
	c := NewCalculator(nil)

	t.Run("workers plus driver on a known node type", func(t *testing.T) {
		snapshot := domain.ClusterSnapshot{NodeType: "m5.xlarge", NumWorkers: 2}
		// 3 nodes: 3*1*0.55 DBU + 3*0.192 VM.
		assert.InDelta(t, 2.226, c.ClusterHourlyCost(snapshot, "AWS"), 0.001)
	})

	t.Run("photon doubles the dbu burn", func(t *testing.T) {
		snapshot := domain.ClusterSnapshot{NodeType: "m5.xlarge", NumWorkers: 2, PhotonEnabled: true}
		assert.InDelta(t, 3.876, c.ClusterHourlyCost(snapshot, "AWS"), 0.001)
	})

	t.Run("unknown node type uses the default vm rate", func(t *testing.T) {
		snapshot := domain.ClusterSnapshot{NodeType: "x9.metal", NumWorkers: 0}
		assert.InDelta(t, 0.55+0.3, c.ClusterHourlyCost(snapshot, "AWS"), 0.001)
	})

	t.Run("unknown cloud uses the default vm rate", func(t *testing.T) {
		snapshot := domain.ClusterSnapshot{NodeType: "m5.xlarge", NumWorkers: 0}
		assert.InDelta(t, 0.55+0.3, c.ClusterHourlyCost(snapshot, "OCI"), 0.001)
	})
}
