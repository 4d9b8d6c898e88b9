// Package seed generates a deterministic fashion catalog for local
// development and load testing.
package seed

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/pkg/slug"
)

// Options controls Generate.
type Options struct {
	Count int
	// Seed makes runs reproducible: the same seed yields the same catalog.
	Seed uint64
	// Now anchors createdAt. Products are spread over the 90 days before it.
	Now time.Time
}

// namespace keeps seeded ids stable across runs.
var namespace = uuid.MustParse("6f1c0e52-8a4b-4d3e-9c57-2b7f0a9d4e11")

type category struct {
	Slug   string
	Weight float64
	Types  []string
}

var categories = []category{
	{"ao", 0.30, []string{"Áo thun", "Áo sơ mi", "Áo khoác", "Áo len", "Áo hoodie"}},
	{"quan", 0.20, []string{"Quần jean", "Quần tây", "Quần short", "Quần jogger"}},
	{"vay", 0.15, []string{"Váy liền", "Chân váy", "Đầm dạ hội", "Đầm maxi"}},
	{"giay", 0.15, []string{"Giày sneaker", "Giày cao gót", "Sandal", "Bốt"}},
	{"tui", 0.10, []string{"Túi xách", "Ba lô", "Túi đeo chéo"}},
	{"phu-kien", 0.10, []string{"Mũ lưỡi trai", "Khăn choàng", "Thắt lưng", "Kính mát"}},
}

var adjectives = []string{
	"Basic", "Cao cấp", "Form rộng", "Slim fit", "Họa tiết", "Vintage", "Thể thao", "Công sở",
}

var colors = []string{
	"Đỏ", "Xanh lá", "Xanh dương", "Vàng", "Đen", "Trắng", "Hồng", "Tím", "Cam", "Xám", "Nâu", "Bạc",
}

var descriptionTemplates = []string{
	"%s chất liệu thoáng mát, phù hợp mặc hằng ngày.",
	"%s thiết kế hiện đại, dễ phối đồ cho mọi dịp.",
	"%s đường may chắc chắn, giữ form sau nhiều lần giặt.",
	"%s phong cách trẻ trung, chất vải mềm mại.",
}

// Generate builds opts.Count products. Category shares follow fixed weights;
// the last category takes the remainder.
func Generate(opts Options) []domain.Product {
	if opts.Count <= 0 {
		return []domain.Product{}
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	products := make([]domain.Product, 0, opts.Count)
	remaining := opts.Count
	idx := 0
	for i, cat := range categories {
		n := int(float64(opts.Count) * cat.Weight)
		if i == len(categories)-1 {
			n = remaining
		}
		remaining -= n

		for j := 0; j < n; j++ {
			products = append(products, generateOne(rng, cat, idx, now))
			idx++
		}
	}
	return products
}

func generateOne(rng *rand.Rand, cat category, idx int, now time.Time) domain.Product {
	kind := cat.Types[rng.IntN(len(cat.Types))]
	adj := adjectives[rng.IntN(len(adjectives))]
	color := colors[rng.IntN(len(colors))]
	name := fmt.Sprintf("%s %s %s", kind, adj, color)

	productColors := []string{color}
	if rng.IntN(3) == 0 {
		if extra := colors[rng.IntN(len(colors))]; extra != color {
			productColors = append(productColors, extra)
		}
	}

	// 99.000 to 4.999.000, rounded to the nearest thousand.
	price := int64(99000+rng.IntN(4900000)) / 1000 * 1000

	createdAt := now.Add(-time.Duration(rng.IntN(90*24*60)) * time.Minute).Truncate(time.Second)

	productType := domain.ProductTypeSelling
	if rng.IntN(10) == 0 {
		productType = domain.ProductTypeRental
	}
	status := domain.ProductStatusActive
	if rng.IntN(20) == 0 {
		status = domain.ProductStatusInactive
	}

	return domain.Product{
		ID:          uuid.NewSHA1(namespace, fmt.Appendf(nil, "product:%d", idx)).String(),
		Name:        name,
		Slug:        fmt.Sprintf("%s-%d", slug.Generate(name), idx),
		Price:       price,
		Description: fmt.Sprintf(descriptionTemplates[rng.IntN(len(descriptionTemplates))], kind),
		Category:    cat.Slug,
		Colors:      productColors,
		Stock:       rng.IntN(200),
		Images: []string{
			fmt.Sprintf("https://picsum.photos/seed/catalog-%d/600/800", idx),
		},
		Views:     int64(rng.IntN(5000)),
		Sold:      int64(rng.IntN(500)),
		Type:      productType,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// Batches splits products into consecutive slices of at most size.
func Batches(products []domain.Product, size int) [][]domain.Product {
	if size <= 0 {
		size = len(products)
	}
	var out [][]domain.Product
	for start := 0; start < len(products); start += size {
		out = append(out, products[start:min(start+size, len(products))])
	}
	return out
}
