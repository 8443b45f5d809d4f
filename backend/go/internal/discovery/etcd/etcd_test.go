package etcd

import "testing"

func TestServiceKey(t *testing.T) {
	got := ServiceKey("project_service", "10.0.0.5:8080")
	if got != "/intentcode/services/project_service/10.0.0.5:8080" {
		t.Errorf("ServiceKey() = %q", got)
	}
}

func TestNewServiceDiscoveryRequiresEndpoints(t *testing.T) {
	if _, err := NewServiceDiscovery(nil, "", ""); err == nil {
		t.Error("expected error without endpoints")
	}
}
