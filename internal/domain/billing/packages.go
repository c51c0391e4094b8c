package billing

// Package is a purchasable credit bundle. The catalog is code, not data:
// prices change through deploys so Stripe amounts and the storefront can
// never drift apart.
type Package struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Credits     int64  `json:"credits"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Popular     bool   `json:"popular"`
}

var packages = []Package{
	{
		ID:          "starter",
		Name:        "Starter",
		Credits:     100,
		PriceCents:  999,
		Currency:    "usd",
		Description: "100 credits to get going",
	},
	{
		ID:          "popular",
		Name:        "Popular",
		Credits:     500,
		PriceCents:  3999,
		Currency:    "usd",
		Description: "500 credits, our most popular pack",
		Popular:     true,
	},
	{
		ID:          "pro",
		Name:        "Pro",
		Credits:     1000,
		PriceCents:  6999,
		Currency:    "usd",
		Description: "1000 credits for heavy use",
	},
	{
		ID:          "enterprise",
		Name:        "Enterprise",
		Credits:     5000,
		PriceCents:  29999,
		Currency:    "usd",
		Description: "5000 credits for teams",
	},
}

// Packages returns the credit package catalog
func Packages() []Package {
	out := make([]Package, len(packages))
	copy(out, packages)
	return out
}

// FindPackage returns the package with the given id
func FindPackage(id string) (Package, bool) {
	for _, p := range packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}
