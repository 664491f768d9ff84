package billing

import (
	"fmt"
	"time"
)

// Config holds the service-level billing settings.
type Config struct {
	PlansFile  string        `env:"BILLING_PLANS_FILE"`                     // YAML catalog; empty uses DefaultPlans
	FreePlan   string        `env:"BILLING_FREE_PLAN" envDefault:"free"`    // used when the file does not name one
	PendingTTL time.Duration `env:"BILLING_PENDING_TTL" envDefault:"24h"`   // age at which pending transactions may be abandoned
	AdminToken string        `env:"ADMIN_TOKEN"`                            // empty disables the admin API
	PublicURL  string        `env:"BILLING_PUBLIC_URL" envDefault:"http://localhost:8080"`
}

// Catalog loads the configured plan table.
func (c Config) Catalog() (*Catalog, error) {
	if c.PlansFile == "" {
		return NewCatalog(DefaultPlans(), c.FreePlan)
	}
	catalog, err := loadCatalogFile(c.PlansFile, c.FreePlan)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.PlansFile, err)
	}
	return catalog, nil
}
