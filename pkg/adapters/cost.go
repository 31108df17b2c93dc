package adapters

import (
	"encoding/json"

	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/models/store"
)

func MapStoreCostRecordToDomain(r store.CostRecord) domain.CostRecord {
	tags := map[string]string{}
	if len(r.Tags) > 0 {
		_ = json.Unmarshal(r.Tags, &tags)
	}
	return domain.CostRecord{
		ID:          r.ID,
		UsageDate:   r.UsageDate,
		WorkspaceID: r.WorkspaceID,
		SKUName:     r.SKUName,
		Cloud:       r.Cloud,
		DBUCount:    r.DBUCount,
		DBURate:     r.DBURate,
		CostUSD:     r.CostUSD,
		ClusterID:   r.ClusterID,
		ClusterName: r.ClusterName,
		JobID:       r.JobID,
		UserEmail:   r.UserEmail,
		Tags:        tags,
	}
}

func MapDomainCostRecordToStore(r domain.CostRecord) store.CostRecord {
	tags, _ := json.Marshal(r.Tags)
	return store.CostRecord{
		ID:          r.ID,
		UsageDate:   r.UsageDate,
		WorkspaceID: r.WorkspaceID,
		SKUName:     r.SKUName,
		Cloud:       r.Cloud,
		DBUCount:    r.DBUCount,
		DBURate:     r.DBURate,
		CostUSD:     r.CostUSD,
		ClusterID:   r.ClusterID,
		ClusterName: r.ClusterName,
		JobID:       r.JobID,
		UserEmail:   r.UserEmail,
		Tags:        tags,
	}
}

func MapStoreDailyCostToDomain(d store.DailyCost) domain.DailyCost {
	return domain.DailyCost{Date: d.Date, Cost: d.Cost}
}
