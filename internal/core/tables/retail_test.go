package tables

import (
	"testing"

	"github.com/JonMunkholm/salespipe/internal/core"
)

func TestRetailSalesRegistered(t *testing.T) {
	def, ok := core.Get(RetailSales)
	if !ok {
		t.Fatalf("%s not registered", RetailSales)
	}

	want := map[string]core.ColumnType{
		"transaction_id":   core.TypeText,
		"date":             core.TypeDate,
		"customer_id":      core.TypeText,
		"gender":           core.TypeText,
		"age":              core.TypeInteger,
		"product_category": core.TypeText,
		"quantity":         core.TypeInteger,
		"price_per_unit":   core.TypeNumeric,
		"total_amount":     core.TypeNumeric,
		"ds":               core.TypeDate,
	}
	if len(def.Columns) != len(want) {
		t.Fatalf("got %d columns, want %d", len(def.Columns), len(want))
	}
	for name, typ := range want {
		col, ok := def.Lookup(name)
		if !ok {
			t.Errorf("column %s missing", name)
			continue
		}
		if col.Type != typ {
			t.Errorf("column %s type = %s, want %s", name, col.Type, typ)
		}
	}
}

func TestRetailSalesProjection(t *testing.T) {
	def, _ := core.Get(RetailSales)
	headers := []string{
		"Transaction ID", "Date", "Customer ID", "Gender", "Age",
		"Product Category", "Quantity", "Price per Unit", "Total Amount",
	}

	proj, err := core.Project(headers, def)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if len(proj) != len(headers) {
		t.Errorf("projected %d of %d source columns", len(proj), len(headers))
	}
}
