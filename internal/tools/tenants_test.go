package tools

import (
	"context"
	"testing"
)

func tenantCluster() *fakeCluster {
	return &fakeCluster{responses: map[string]clusterTable{
		"aadTenantId": {
			columns: []string{"companyName", "aadTenantId", "eventCount"},
			rows: [][]interface{}{
				{"Contoso Ltd", "11111111-aaaa-bbbb-cccc-000000000001", float64(1200)},
				{"Fabrikam Inc", "22222222-aaaa-bbbb-cccc-000000000002", float64(300)},
				{"Contoso France", "33333333-aaaa-bbbb-cccc-000000000003", float64(12)},
			},
		},
	}}
}

func TestTenantMapping(t *testing.T) {
	h := newTestHandlers(t, tenantCluster())

	out, err := h.Execute(context.Background(), "get_tenant_mapping", nil)
	if err != nil {
		t.Fatal(err)
	}
	m := asMap(t, out)
	if m["total"] != 3 {
		t.Errorf("total = %v, want 3", m["total"])
	}
	tenants := m["tenants"].([]tenantEntry)
	if tenants[0].CompanyName != "Contoso Ltd" || tenants[0].Count != 1200 {
		t.Errorf("first tenant = %+v", tenants[0])
	}
}

func TestTenantMapping_Filter(t *testing.T) {
	h := newTestHandlers(t, tenantCluster())

	out, err := h.Execute(context.Background(), "get_tenant_mapping", map[string]interface{}{
		"filter": "contoso",
	})
	if err != nil {
		t.Fatal(err)
	}
	tenants := asMap(t, out)["tenants"].([]tenantEntry)
	if len(tenants) != 2 {
		t.Fatalf("filtered tenants = %d, want 2", len(tenants))
	}

	// The filter also matches tenant IDs.
	out, err = h.Execute(context.Background(), "get_tenant_mapping", map[string]interface{}{
		"filter": "22222222",
	})
	if err != nil {
		t.Fatal(err)
	}
	tenants = asMap(t, out)["tenants"].([]tenantEntry)
	if len(tenants) != 1 || tenants[0].CompanyName != "Fabrikam Inc" {
		t.Errorf("ID-filtered tenants = %+v", tenants)
	}
}

func TestTenantMapping_NoMatches(t *testing.T) {
	h := newTestHandlers(t, tenantCluster())
	out, err := h.Execute(context.Background(), "get_tenant_mapping", map[string]interface{}{
		"filter": "nonexistent",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := asMap(t, out)["total"]; got != 0 {
		t.Errorf("total = %v, want 0", got)
	}
}
