package httpserver

import (
	"sync"

	appaudit "github.com/bryanwahyu/automaton-audit/internal/application/audit"
)

// Tenant is one tenant's audit runtime.
type Tenant struct {
	Audit *appaudit.Orchestrator
	// SetSpeed changes the tenant's pacing level (1-5); nil when pacing is fixed.
	SetSpeed func(level int)
}

// Tenants builds runtimes lazily, one per tenant id.
type Tenants struct {
	mu    sync.Mutex
	m     map[string]*Tenant
	build func(tenant string) *Tenant
}

func NewTenants(build func(tenant string) *Tenant) *Tenants {
	return &Tenants{m: make(map[string]*Tenant), build: build}
}

func (t *Tenants) Get(name string) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rt, ok := t.m[name]; ok {
		return rt
	}
	rt := t.build(name)
	t.m[name] = rt
	return rt
}
