package tools

import (
	"context"
	"fmt"
	"strings"
)

const defaultTenantDays = 30

type tenantEntry struct {
	CompanyName string `json:"companyName"`
	AADTenantID string `json:"aadTenantId"`
	Count       int64  `json:"count"`
}

// tenantMapping resolves company names to AAD tenant IDs so findings can
// name customers. The substring filter is applied client-side over both
// columns.
func (h *Handlers) tenantMapping(ctx context.Context, svc *services, args map[string]interface{}) (interface{}, error) {
	days := argInt(args, "days", defaultTenantDays)
	filter := strings.ToLower(strings.TrimSpace(argString(args, "filter")))

	kql := fmt.Sprintf(`traces
| where timestamp > ago(%dd)
| extend companyName = tostring(customDimensions.companyName), aadTenantId = tostring(customDimensions.aadTenantId)
| where isnotempty(aadTenantId)
| summarize eventCount = count() by companyName, aadTenantId
| order by eventCount desc`, days)

	result, err := svc.kusto.Query(ctx, kql)
	if err != nil {
		return nil, err
	}

	companyIdx := result.ColumnIndex("companyName")
	tenantIdx := result.ColumnIndex("aadTenantId")
	countIdx := result.ColumnIndex("eventCount")
	if tenantIdx < 0 || countIdx < 0 {
		return nil, fmt.Errorf("unexpected tenant-mapping result shape: columns %v", result.Columns)
	}

	var tenants []tenantEntry
	for _, row := range result.Rows {
		e := tenantEntry{
			CompanyName: cellString(row, companyIdx),
			AADTenantID: cellString(row, tenantIdx),
			Count:       cellInt64(row, countIdx),
		}
		if filter != "" &&
			!strings.Contains(strings.ToLower(e.CompanyName), filter) &&
			!strings.Contains(strings.ToLower(e.AADTenantID), filter) {
			continue
		}
		tenants = append(tenants, e)
	}
	if tenants == nil {
		tenants = []tenantEntry{}
	}

	return map[string]interface{}{
		"days":    days,
		"filter":  filter,
		"total":   len(tenants),
		"tenants": tenants,
	}, nil
}
