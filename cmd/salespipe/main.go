// Command salespipe loads the retail sales CSV into PostgreSQL, runs the BI
// SQL batch and hands the results to the report builder.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
