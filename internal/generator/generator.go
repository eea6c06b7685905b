package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/invoiceguard/backend/internal/service"
)

// Dataset contains the generated invoice stream in submission order.
type Dataset struct {
	Items []service.IngestItem `json:"items"`
}

// Generator produces synthetic invoice data aligned with the scoring engine
// schema. Besides clean invoices it injects near duplicates, swapped bank
// accounts, and amount outliers so a scored dataset exercises every flag.
type Generator struct {
	cfg       Config
	rand      *rand.Rand
	fragments nameFragments
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	if cfg.NumVendors <= 0 {
		cfg.NumVendors = DefaultConfig().NumVendors
	}
	if cfg.NumInvoices <= 0 {
		cfg.NumInvoices = DefaultConfig().NumInvoices
	}
	if cfg.PaidFraction <= 0 {
		cfg.PaidFraction = DefaultConfig().PaidFraction
	}
	if cfg.DuplicateChance <= 0 {
		cfg.DuplicateChance = DefaultConfig().DuplicateChance
	}
	if cfg.IBANSwapChance <= 0 {
		cfg.IBANSwapChance = DefaultConfig().IBANSwapChance
	}
	if cfg.OutlierChance <= 0 {
		cfg.OutlierChance = DefaultConfig().OutlierChance
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:       cfg,
		rand:      rand.New(rand.NewSource(cfg.Seed)),
		fragments: defaultNameFragments(),
	}
}

type vendorSeed struct {
	name       string
	taxID      string
	iban       string
	baseAmount float64
	nextNumber int
}

// Generate synthesises the invoice stream. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	vendors := make([]*vendorSeed, g.cfg.NumVendors)
	for i := range vendors {
		vendors[i] = &vendorSeed{
			name:       g.randomVendorName(i),
			taxID:      fmt.Sprintf("TAX-%06d", g.rand.Intn(1000000)),
			iban:       g.randomIBAN(),
			baseAmount: float64(g.rand.Intn(9000)+500) + g.rand.Float64(),
			nextNumber: 1000 + g.rand.Intn(500),
		}
	}

	now := time.Now().UTC()
	items := make([]service.IngestItem, 0, g.cfg.NumInvoices)
	var previous []service.InvoiceInput

	for i := 0; i < g.cfg.NumInvoices; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		roll := g.rand.Float64()
		var invoice service.InvoiceInput
		switch {
		case roll < g.cfg.DuplicateChance && len(previous) > 0:
			invoice = g.nearDuplicate(previous[g.rand.Intn(len(previous))])
		default:
			invoice = g.cleanInvoice(vendors[g.rand.Intn(len(vendors))], now)
		}

		if g.rand.Float64() < g.cfg.IBANSwapChance {
			invoice.IBAN = g.randomIBAN()
		}
		if g.rand.Float64() < g.cfg.OutlierChance {
			invoice.AmountTotal *= 3 + g.rand.Float64()*7
		}

		previous = append(previous, invoice)
		items = append(items, service.IngestItem{
			Invoice:  invoice,
			MarkPaid: g.rand.Float64() < g.cfg.PaidFraction,
		})
	}

	return Dataset{Items: items}, nil
}

func (g *Generator) cleanInvoice(v *vendorSeed, now time.Time) service.InvoiceInput {
	v.nextNumber++
	date := now.Add(-time.Duration(g.rand.Intn(180*24)) * time.Hour)
	// Jitter around the vendor's base amount, within the typical band.
	amount := v.baseAmount * (0.8 + g.rand.Float64()*0.4)
	return service.InvoiceInput{
		VendorName:    v.name,
		InvoiceNumber: fmt.Sprintf("INV-%d", v.nextNumber),
		InvoiceDate:   date.Format("2006-01-02"),
		AmountTotal:   float64(int(amount*100)) / 100,
		Currency:      "USD",
		TaxID:         v.taxID,
		IBAN:          v.iban,
		SourceFile:    fmt.Sprintf("scan-%06d.pdf", g.rand.Intn(1000000)),
	}
}

// nearDuplicate mutates a prior invoice the way a resubmitted scan drifts: a
// suffixed number, a nudged date, or a slightly different amount.
func (g *Generator) nearDuplicate(src service.InvoiceInput) service.InvoiceInput {
	dup := src
	switch g.rand.Intn(3) {
	case 0:
		dup.InvoiceNumber = src.InvoiceNumber + "A"
	case 1:
		if ts, err := time.Parse("2006-01-02", src.InvoiceDate); err == nil {
			dup.InvoiceDate = ts.Add(time.Duration(1+g.rand.Intn(10)) * 24 * time.Hour).Format("2006-01-02")
		}
	default:
		dup.AmountTotal = src.AmountTotal + g.rand.Float64() - 0.5
	}
	dup.SourceFile = fmt.Sprintf("scan-%06d.pdf", g.rand.Intn(1000000))
	return dup
}

func (g *Generator) randomVendorName(i int) string {
	base := g.fragments.vendorBases[g.rand.Intn(len(g.fragments.vendorBases))]
	suffix := g.fragments.vendorSuffixes[g.rand.Intn(len(g.fragments.vendorSuffixes))]
	return fmt.Sprintf("%s %s %d", base, suffix, i+1)
}

func (g *Generator) randomIBAN() string {
	return fmt.Sprintf("DE%02d%08d%010d", g.rand.Intn(90)+10, g.rand.Intn(100000000), g.rand.Intn(1000000000))
}

type nameFragments struct {
	vendorBases    []string
	vendorSuffixes []string
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		vendorBases:    []string{"Acme", "Globex", "Initech", "Umbrella", "Stark", "Wayne", "Hooli", "Vandelay", "Wonka", "Cyberdyne", "Tyrell", "Aperture"},
		vendorSuffixes: []string{"Supplies", "Logistics", "Consulting", "Industries", "Services", "Partners", "Solutions", "Trading"},
	}
}
