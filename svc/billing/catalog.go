package billing

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/currency"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/schoolpay/pkg/limits"
)

// DefaultFreePlan is the plan tenants hold before their first payment.
const DefaultFreePlan = "free"

const gib = int64(1) << 30

// Catalog is the immutable table of plan definitions. It is safe for
// concurrent use; every accessor returns copies.
type Catalog struct {
	plans map[string]Plan
	order []string
	free  string
}

// NewCatalog validates plans and builds a catalog whose default plan is free.
func NewCatalog(plans []Plan, free string) (*Catalog, error) {
	if free == "" {
		free = DefaultFreePlan
	}
	free = strings.ToLower(free)

	c := &Catalog{
		plans: make(map[string]Plan, len(plans)),
		free:  free,
	}

	var errs []error
	for _, p := range plans {
		p = p.clone()
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
		if err := validatePlan(p); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := c.plans[p.Name]; ok {
			errs = append(errs, fmt.Errorf("%w: duplicate plan %q", ErrInvalidCatalog, p.Name))
			continue
		}
		c.plans[p.Name] = p
		c.order = append(c.order, p.Name)
	}

	if _, ok := c.plans[free]; !ok {
		errs = append(errs, fmt.Errorf("%w: free plan %q is not defined", ErrInvalidCatalog, free))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	slices.SortStableFunc(c.order, func(a, b string) int {
		return cmp.Compare(c.plans[a].PriceMinorUnits, c.plans[b].PriceMinorUnits)
	})
	return c, nil
}

func validatePlan(p Plan) error {
	if p.Name == "" {
		return fmt.Errorf("%w: plan name is required", ErrInvalidCatalog)
	}
	if p.PriceMinorUnits < 0 {
		return fmt.Errorf("%w: plan %q has a negative price", ErrInvalidCatalog, p.Name)
	}
	if !p.IsFree() && p.BillingPeriodDays <= 0 {
		return fmt.Errorf("%w: paid plan %q needs a positive billing period", ErrInvalidCatalog, p.Name)
	}
	if _, err := currency.ParseISO(p.Currency); err != nil {
		return fmt.Errorf("%w: plan %q has invalid currency %q", ErrInvalidCatalog, p.Name, p.Currency)
	}
	for _, l := range []int64{p.MaxStudents, p.MaxTeachers, p.MaxStorageBytes} {
		if l < limits.Unlimited {
			return fmt.Errorf("%w: plan %q has a limit below -1", ErrInvalidCatalog, p.Name)
		}
	}
	return nil
}

// Lookup returns the plan named name. Unknown names fail with
// ErrPlanNotFound and are never defaulted.
func (c *Catalog) Lookup(name string) (Plan, error) {
	p, ok := c.plans[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, name)
	}
	return p.clone(), nil
}

// Plans returns every plan ordered by price.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.plans[name].clone())
	}
	return out
}

// Free returns the plan tenants hold without a paid subscription.
func (c *Catalog) Free() Plan {
	return c.plans[c.free].clone()
}

// CheapestWithFeature returns the lowest priced plan granting capability.
func (c *Catalog) CheapestWithFeature(capability string) (Plan, bool) {
	for _, name := range c.order {
		if p := c.plans[name]; p.HasFeature(capability) {
			return p.clone(), true
		}
	}
	return Plan{}, false
}

type catalogFile struct {
	FreePlan string `yaml:"free_plan"`
	Plans    []Plan `yaml:"plans"`
}

// ParseCatalog builds a catalog from its YAML form:
//
//	free_plan: free
//	plans:
//	  - name: basic
//	    price: 50000
//	    currency: NGN
//	    billing_period_days: 90
//	    max_students: 300
//	    features: [attendance, messaging]
func ParseCatalog(data []byte) (*Catalog, error) {
	return parseCatalog(data, DefaultFreePlan)
}

func parseCatalog(data []byte, free string) (*Catalog, error) {
	f := catalogFile{FreePlan: free}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("%w: no plans defined", ErrInvalidCatalog)
	}
	return NewCatalog(f.Plans, f.FreePlan)
}

// LoadCatalogFile reads and parses a YAML catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	return loadCatalogFile(path, DefaultFreePlan)
}

func loadCatalogFile(path, free string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	return parseCatalog(data, free)
}

// DefaultPlans is the built-in plan table. Prices are in minor units.
func DefaultPlans() []Plan {
	return []Plan{
		{
			Name:            "free",
			DisplayName:     "Free",
			Currency:        "NGN",
			MaxStudents:     50,
			MaxTeachers:     5,
			MaxStorageBytes: 1 * gib,
			Features:        []string{"attendance"},
		},
		{
			Name:              "basic",
			DisplayName:       "Basic",
			PriceMinorUnits:   50_000,
			Currency:          "NGN",
			BillingPeriodDays: 90,
			MaxStudents:       300,
			MaxTeachers:       30,
			MaxStorageBytes:   10 * gib,
			Features:          []string{"attendance", "content_upload", "messaging"},
		},
		{
			Name:              "standard",
			DisplayName:       "Standard",
			PriceMinorUnits:   120_000,
			Currency:          "NGN",
			BillingPeriodDays: 180,
			MaxStudents:       1000,
			MaxTeachers:       100,
			MaxStorageBytes:   50 * gib,
			Features:          []string{"attendance", "content_upload", "messaging", "ai_generation", "video"},
		},
		{
			Name:              "premium",
			DisplayName:       "Premium",
			PriceMinorUnits:   200_000,
			Currency:          "NGN",
			BillingPeriodDays: 365,
			MaxStudents:       limits.Unlimited,
			MaxTeachers:       limits.Unlimited,
			MaxStorageBytes:   200 * gib,
			Features: []string{
				"attendance", "content_upload", "messaging", "ai_generation", "video",
				"analytics", "custom_branding",
			},
		},
	}
}

// DefaultCatalog returns the catalog built from DefaultPlans.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultPlans(), DefaultFreePlan)
	if err != nil {
		panic(err)
	}
	return c
}
