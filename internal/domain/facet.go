package domain

// CategoryCount is a category name with the number of live products in it.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ColorCount is a color facet entry.
type ColorCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DefaultColors returns the static color facet.
func DefaultColors() []ColorCount {
	return []ColorCount{
		{Name: "Đỏ", Count: 42},
		{Name: "Xanh lá", Count: 36},
		{Name: "Xanh dương", Count: 28},
		{Name: "Vàng", Count: 24},
		{Name: "Đen", Count: 56},
		{Name: "Trắng", Count: 48},
		{Name: "Hồng", Count: 18},
		{Name: "Tím", Count: 22},
		{Name: "Cam", Count: 15},
		{Name: "Xám", Count: 31},
		{Name: "Nâu", Count: 20},
		{Name: "Bạc", Count: 12},
	}
}

// PriceRangeBucket is one bucket of the price range facet. From is inclusive
// and To exclusive; either may be open.
type PriceRangeBucket struct {
	Key      string   `json:"key"`
	From     *float64 `json:"from,omitempty"`
	To       *float64 `json:"to,omitempty"`
	DocCount int64    `json:"doc_count"`
}

// PriceStatsFull is the stats aggregation over price.
type PriceStatsFull struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Sum   float64 `json:"sum"`
}

// PriceRanges is the price facet: overall stats plus fixed buckets.
type PriceRanges struct {
	Stats  PriceStatsFull     `json:"stats"`
	Ranges []PriceRangeBucket `json:"ranges"`
}

// EmptyPriceRanges is the degraded price facet.
func EmptyPriceRanges() *PriceRanges {
	return &PriceRanges{Ranges: []PriceRangeBucket{}}
}

// PriceBound is one configured price range. Zero means open.
type PriceBound struct {
	From float64
	To   float64
}

// PriceBuckets are the fixed price ranges, in the smallest currency unit.
var PriceBuckets = []PriceBound{
	{To: 500000},
	{From: 500000, To: 1000000},
	{From: 1000000, To: 2000000},
	{From: 2000000, To: 5000000},
	{From: 5000000},
}
