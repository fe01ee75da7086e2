package domain

// Marketplace identifies a resale target marketplace.
type Marketplace string

// Supported target marketplaces.
const (
	MarketplaceEbay    Marketplace = "ebay"
	MarketplaceAmazon  Marketplace = "amazon"
	MarketplaceEtsy    Marketplace = "etsy"
	MarketplaceMercado Marketplace = "mercadolibre"
)

// Region identifies the marketplace region used for fee schedules and
// competitor lookups.
type Region string

// Supported regions.
const (
	RegionUS Region = "US"
	RegionEU Region = "EU"
	RegionUK Region = "UK"
	RegionLA Region = "LATAM"
)

// DefaultMarketplaces is the declaration order used for deterministic
// tie-breaking when two marketplaces yield the same margin.
var DefaultMarketplaces = []Marketplace{
	MarketplaceEbay,
	MarketplaceAmazon,
	MarketplaceEtsy,
}
