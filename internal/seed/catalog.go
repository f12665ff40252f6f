// Package seed holds the sample denim catalog loaded by the seed command.
package seed

import (
	"github.com/denim-store/storefront/internal/models"
	"github.com/shopspring/decimal"
)

var (
	menSizes   = []string{"28", "30", "32", "34", "36", "38", "40", "42"}
	adultSizes = []string{"XS", "S", "M", "L", "XL", "XXL"}
)

type entry struct {
	name        string
	description string
	price       int64
	category    models.Category
	sizes       []string
	stock       int
}

var catalog = []entry{
	{"Men's Classic Straight Fit Jeans", "Straight leg in premium denim, easy to dress up or down.", 2999, models.CategoryMen, menSizes[1:6], 25},
	{"Men's Slim Fit Dark Denim", "Slim cut in dark stretch denim.", 3499, models.CategoryMen, menSizes[0:5], 30},
	{"Men's Regular Fit Blue Jeans", "Regular cut through seat and thigh in durable cotton.", 2599, models.CategoryMen, menSizes[2:7], 35},
	{"Men's Relaxed Fit Comfort Jeans", "Extra room through seat and thigh for long days.", 2799, models.CategoryMen, menSizes[2:8], 28},
	{"Men's Skinny Fit Black Jeans", "Close fitting black stretch denim.", 3699, models.CategoryMen, menSizes[0:5], 22},
	{"Men's Bootcut Vintage Wash", "Slight flare from the knee in a vintage wash.", 3199, models.CategoryMen, menSizes[1:7], 26},

	{"Women's High-Waist Skinny Jeans", "High rise skinny jeans in premium stretch denim.", 3799, models.CategoryWomen, adultSizes[0:5], 35},
	{"Women's Straight Leg Classic", "Mid rise straight leg with a timeless line.", 3299, models.CategoryWomen, adultSizes, 32},
	{"Women's Bootcut Flare Jeans", "Bootcut with a subtle flare and five pocket styling.", 3399, models.CategoryWomen, adultSizes[0:5], 28},
	{"Women's Mom Fit Vintage", "High waisted mom jeans with a relaxed leg.", 2899, models.CategoryWomen, adultSizes[1:5], 24},
	{"Women's Slim Fit Low Rise", "Low rise slim jeans in stretch denim.", 3499, models.CategoryWomen, adultSizes[0:5], 30},
	{"Women's Regular Fit Comfort", "Mid rise regular fit for all day wear.", 2799, models.CategoryWomen, adultSizes[1:6], 33},

	{"Kids' Straight Leg Classic", "Straight leg jeans with reinforced knees.", 1599, models.CategoryKids, adultSizes[0:4], 40},
	{"Kids' Slim Fit Stretch", "Slim stretch denim that moves with them.", 1799, models.CategoryKids, adultSizes[0:5], 32},
	{"Kids' Regular Fit Blue Jeans", "Everyday regular fit in classic blue.", 1399, models.CategoryKids, adultSizes[1:4], 38},
	{"Kids' Relaxed Fit Comfort", "Roomy relaxed fit with an adjustable waist.", 1699, models.CategoryKids, adultSizes[0:5], 35},
	{"Kids' Skinny Fit Fashion", "Skinny fit with fun wash details.", 1649, models.CategoryKids, adultSizes[1:5], 28},
	{"Kids' Bootcut Adventure", "Bootcut jeans that fit over boots.", 1499, models.CategoryKids, adultSizes[0:4], 30},
}

// Products returns a fresh copy of the sample catalog. Fits are left empty
// and inferred from the names on create.
func Products() []models.Product {
	products := make([]models.Product, 0, len(catalog))
	for _, e := range catalog {
		products = append(products, models.Product{
			Name:        e.name,
			Description: e.description,
			Price:       decimal.NewFromInt(e.price),
			Category:    e.category,
			Sizes:       append([]string(nil), e.sizes...),
			Image:       "/assets/" + slug(e.name) + ".jpg",
			Stock:       e.stock,
		})
	}
	return products
}

func slug(name string) string {
	out := make([]byte, 0, len(name))
	dash := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			out = append(out, c)
			dash = false
		case c >= 'A' && c <= 'Z':
			out = append(out, c+'a'-'A')
			dash = false
		case c == '\'':
		default:
			if !dash && len(out) > 0 {
				out = append(out, '-')
				dash = true
			}
		}
	}
	if dash {
		out = out[:len(out)-1]
	}
	return string(out)
}
