package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MemoryProvider serves tenants from an in-process table.
type MemoryProvider struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]Tenant
	bySlug map[string]uuid.UUID
}

func NewMemoryProvider(tenants ...Tenant) *MemoryProvider {
	p := &MemoryProvider{
		byID:   make(map[uuid.UUID]Tenant),
		bySlug: make(map[string]uuid.UUID),
	}
	for _, t := range tenants {
		p.Put(t)
	}
	return p
}

// Put adds or replaces a tenant.
func (p *MemoryProvider) Put(t Tenant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID[t.ID] = t
	if t.Subdomain != "" {
		p.bySlug[strings.ToLower(t.Subdomain)] = t.ID
	}
}

func (p *MemoryProvider) GetByIdentifier(_ context.Context, identifier string) (*Tenant, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, err := uuid.Parse(identifier)
	if err != nil {
		var ok bool
		if id, ok = p.bySlug[strings.ToLower(identifier)]; !ok {
			return nil, ErrTenantNotFound
		}
	}

	t, ok := p.byID[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return &t, nil
}

// rowQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGProvider loads tenants from the tenants table.
type PGProvider struct {
	db rowQuerier
}

func NewPGProvider(db rowQuerier) *PGProvider {
	return &PGProvider{db: db}
}

func (p *PGProvider) GetByIdentifier(ctx context.Context, identifier string) (*Tenant, error) {
	const cols = `SELECT id, subdomain, name, active, created_at FROM tenants`

	var row pgx.Row
	if id, err := uuid.Parse(identifier); err == nil {
		row = p.db.QueryRow(ctx, cols+` WHERE id = $1`, id)
	} else {
		if identifier == "" || strings.ContainsAny(identifier, " /") {
			return nil, ErrInvalidIdentifier
		}
		row = p.db.QueryRow(ctx, cols+` WHERE subdomain = $1`, strings.ToLower(identifier))
	}

	var t Tenant
	if err := row.Scan(&t.ID, &t.Subdomain, &t.Name, &t.Active, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("tenant: load %q: %w", identifier, err)
	}
	return &t, nil
}
