// Package collapse implements lazily materialized stubs.
//
// A Stub is a lightweight entity (an album or song summary, for example) that
// answers for the fully detailed entity it stands for. The full value is only
// available after an asynchronous fetch performed by the stub's Materializer.
// Callers address members by name through Stub.Call; the dispatcher decides per
// call whether the stub's own data can answer or whether the full value has to
// be materialized first.
//
// Stub-side methods return an Outcome instead of throwing control signals:
//   - Value answers immediately and never materializes.
//   - Transform materializes (single-flight through the stub's Cell) and derives
//     the answer from the full value.
//   - To runs the method's own work, which yields both the full value to cache
//     and an answer that need not be derivable from it.
//
// Once a Cell is materialized the full value strictly shadows the stub for any
// member name both define. Failed materializations are not cached: the cell
// returns to empty and a later call retries. Concurrent callers never start more
// than one materializer per flight and never observe two different full values.
//
// Collapse forces materialization of any value that wraps a stub and reports
// false for everything else.
package collapse
