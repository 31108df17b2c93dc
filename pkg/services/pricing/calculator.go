package pricing

import "github.com/de-tools/costpulse/pkg/models/domain"

// Calculator turns DBU usage and cluster shape into USD estimates. Custom
// rates override the list prices for negotiated contracts.
type Calculator struct {
	rates map[string]float64
}

func NewCalculator(customRates map[string]float64) *Calculator {
	rates := make(map[string]float64, len(DBURates)+len(customRates))
	for sku, rate := range DBURates {
		rates[sku] = rate
	}
	for sku, rate := range customRates {
		rates[sku] = rate
	}
	return &Calculator{rates: rates}
}

// DBURate returns the USD-per-DBU rate for a SKU, falling back to the
// default when the SKU is unknown.
func (c *Calculator) DBURate(skuName string) float64 {
	rate, ok := c.rates[skuName]
	if !ok {
		return defaultDBURate
	}
	return rate
}

// DBUCost prices a DBU count against the SKU's rate. Photon workloads bill
// against the SKU's _PHOTON variant when one exists.
func (c *Calculator) DBUCost(skuName string, dbuCount float64, photonEnabled bool) float64 {
	sku := skuName
	if photonEnabled {
		if _, ok := c.rates[sku+"_PHOTON"]; ok {
			sku = sku + "_PHOTON"
		}
	}
	rate, ok := c.rates[sku]
	if !ok {
		rate = defaultDBURate
	}
	return rate * dbuCount
}

// ClusterHourlyCost estimates the combined DBU and VM burn rate of a
// cluster: workers plus driver, each consuming DBUs at the all-purpose
// rate and a VM at the node type's cloud rate.
func (c *Calculator) ClusterHourlyCost(snapshot domain.ClusterSnapshot, cloud string) float64 {
	nodes := float64(snapshot.NumWorkers + 1)

	dbuPerNode := 1.0
	if snapshot.PhotonEnabled {
		dbuPerNode = 2.0
	}
	dbuRate, ok := c.rates["ALL_PURPOSE_COMPUTE"]
	if !ok {
		dbuRate = 0.55
	}

	vmRate := defaultVMRate
	if cloudRates, ok := VMCosts[cloud]; ok {
		if r, ok := cloudRates[snapshot.NodeType]; ok {
			vmRate = r
		}
	}

	return nodes*dbuPerNode*dbuRate + nodes*vmRate
}
