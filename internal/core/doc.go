// Package core loads a retail sales CSV into PostgreSQL.
//
// It holds the domain logic independent of the CLI and HTTP surfaces:
//
//   - Table Definitions: registered at init time via [Register] from the
//     tables package. Each [TableDefinition] names the canonical columns of
//     one target table and their types.
//   - Dataset: [ReadDataset] reads a headed CSV through [WrapForStreaming].
//   - Loader: [Loader.Load] projects a dataset onto a definition and
//     replaces the target table in a single transaction, appending one
//     [AuditRecord] to the namespace's run_log.
//
// # Table Registry
//
//	core.Register(core.TableDefinition{
//	    Key: "retail_sales",
//	    Columns: []core.Column{
//	        {Name: "transaction_id", Type: core.TypeText},
//	        {Name: "total_amount", Type: core.TypeNumeric},
//	    },
//	})
//
// # Load Transaction
//
// Within one transaction the loader creates the namespace and table when
// absent, verifies an existing relation is a table holding every projected
// column, truncates it, streams rows with COPY, checks the copied count and
// inserts the run_log row. Any failure rolls the whole unit back.
//
// # Error Handling
//
// Failures are [*PipelineError] values categorized by [ErrorKind] and
// matchable with errors.Is against [ErrConnection], [ErrSchemaConflict],
// [ErrTransfer], [ErrFileExecution] and [ErrDiscovery]. [MapError] turns any
// error into an operator-facing message with a support code.
package core
