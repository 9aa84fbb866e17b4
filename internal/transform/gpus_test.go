package transform

import (
	"testing"

	"github.com/web3-frozen/akash-stats-bot/internal/akash"
)

func priceModel(model string, total, available int, avg *float64) akash.GPUPriceModel {
	m := akash.GPUPriceModel{
		Vendor:       "nvidia",
		Model:        model,
		RAM:          "80Gi",
		Interface:    "PCIe",
		Availability: akash.Availability{Total: total, Available: available},
	}
	if avg != nil {
		m.Price = &akash.GPUPrice{Avg: *avg}
	}
	return m
}

func fp(v float64) *float64 { return &v }

func TestSummarizeExample(t *testing.T) {
	got := Summarize([]akash.GPUPriceModel{
		priceModel("A100", 50, 40, fp(200)),
		priceModel("T4", 5, 5, fp(50)),
		priceModel("T4", 3, 2, nil),
	})

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Model != "A100 80Gi PCIe" || got[0].Total != 50 || got[0].Available != 40 || *got[0].Price != 200 {
		t.Errorf("row 0 = %+v", got[0])
	}
	other := got[1]
	if other.Model != OtherLabel || other.Total != 8 || other.Available != 7 {
		t.Errorf("other = %+v", other)
	}
	if other.Price == nil || *other.Price != 50.0 {
		t.Errorf("other price = %v, want 50", other.Price)
	}
}

func TestSummarizeOrderingAndTotals(t *testing.T) {
	in := []akash.GPUPriceModel{
		priceModel("rtx4090", 30, 10, fp(0.4)),
		priceModel("t4", 10, 9, fp(0.1)),
		priceModel("h100", 120, 20, fp(2.1)),
		priceModel("a6000", 11, 1, nil),
		priceModel("k80", 1, 1, fp(0.05)),
		priceModel("v100", 30, 3, fp(0.6)),
	}
	got := Summarize(in)

	wantOrder := []string{"h100 80Gi PCIe", "rtx4090 80Gi PCIe", "v100 80Gi PCIe", "a6000 80Gi PCIe", OtherLabel}
	labels := got.Labels()
	if len(labels) != len(wantOrder) {
		t.Fatalf("labels = %v, want %v", labels, wantOrder)
	}
	for i := range wantOrder {
		if labels[i] != wantOrder[i] {
			t.Errorf("labels[%d] = %q, want %q", i, labels[i], wantOrder[i])
		}
	}

	inTotal := 0
	for _, m := range in {
		inTotal += m.Availability.Total
	}
	if got.TotalGPUs() != inTotal {
		t.Errorf("TotalGPUs = %d, want %d", got.TotalGPUs(), inTotal)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Total > got[i-1].Total {
			t.Errorf("row %d total %d > previous %d", i, got[i].Total, got[i-1].Total)
		}
	}

	other := got[len(got)-1]
	if other.Total != 11 || *other.Price != 0.08 {
		t.Errorf("other = %+v price %v, want total 11 price 0.08", other, *other.Price)
	}
	if got[3].Price != nil {
		t.Errorf("a6000 price = %v, want nil", *got[3].Price)
	}
}

func TestSummarizeOtherRow(t *testing.T) {
	tests := []struct {
		name      string
		in        []akash.GPUPriceModel
		wantOther bool
		wantPrice *float64
	}{
		{"no small models", []akash.GPUPriceModel{priceModel("a", 11, 1, nil)}, false, nil},
		{"small without prices", []akash.GPUPriceModel{priceModel("a", 2, 1, nil), priceModel("b", 3, 0, nil)}, true, nil},
		{"threshold is inclusive", []akash.GPUPriceModel{priceModel("a", 10, 1, fp(1.005))}, true, fp(1.01)},
		{"rounded mean", []akash.GPUPriceModel{priceModel("a", 1, 1, fp(1)), priceModel("b", 1, 1, fp(2)), priceModel("c", 1, 1, fp(2))}, true, fp(1.67)},
		{"empty input", nil, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.in)
			others := 0
			var other GPUModel
			for _, m := range got {
				if m.Model == OtherLabel {
					others++
					other = m
				}
			}
			if tt.wantOther != (others == 1) || others > 1 {
				t.Fatalf("other rows = %d, wantOther %v", others, tt.wantOther)
			}
			if !tt.wantOther {
				return
			}
			switch {
			case tt.wantPrice == nil && other.Price != nil:
				t.Errorf("price = %v, want nil", *other.Price)
			case tt.wantPrice != nil && (other.Price == nil || *other.Price != *tt.wantPrice):
				t.Errorf("price = %v, want %v", other.Price, *tt.wantPrice)
			}
		})
	}
}

func TestSummaryRecords(t *testing.T) {
	recs := Summary{
		{Model: "a100 80Gi SXM4", Total: 50, Available: 40, Price: fp(1.5)},
		{Model: OtherLabel, Total: 8, Available: 7},
	}.Records()

	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if recs[0]["price"] != 1.5 || recs[0]["total"] != 50 {
		t.Errorf("recs[0] = %v", recs[0])
	}
	if recs[1]["price"] != nil {
		t.Errorf("recs[1] price = %v, want nil", recs[1]["price"])
	}
}
