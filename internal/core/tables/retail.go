// Package tables registers the table definitions the pipeline can load.
// Import it for its side effect.
package tables

import "github.com/JonMunkholm/salespipe/internal/core"

// RetailSales is the registry key and default table name of the retail
// sales dataset.
const RetailSales = "retail_sales"

// StampColumn is the as-of date column added to datasets that lack one.
const StampColumn = "ds"

func init() {
	registerRetailSales()
}

func registerRetailSales() {
	core.Register(core.TableDefinition{
		Key:   RetailSales,
		Label: "Retail Sales",
		Columns: []core.Column{
			{Name: "Transaction ID", Type: core.TypeText},
			{Name: "Date", Type: core.TypeDate},
			{Name: "Customer ID", Type: core.TypeText},
			{Name: "Gender", Type: core.TypeText},
			{Name: "Age", Type: core.TypeInteger},
			{Name: "Product Category", Type: core.TypeText},
			{Name: "Quantity", Type: core.TypeInteger},
			{Name: "Price per Unit", Type: core.TypeNumeric},
			{Name: "Total Amount", Type: core.TypeNumeric},
			{Name: StampColumn, Type: core.TypeDate},
		},
	})
}
