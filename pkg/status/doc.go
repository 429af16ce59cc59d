/*
Package status aggregates the per-entry results of a redacter run.

	+-----------+      Record      +-----------+
	|  workers  | ---------------> |  Summary  |
	+-----------+                  +-----+-----+
	                                     |
	                                  Report()
	                                     |
	                               +-----+-----+
	                               |  Report   |
	                               +-----------+

🎯 Purpose:
- One Result per entry, whatever happened to it
- Counts per outcome (redacted, copied, skipped, failed)
- A record of every failure with its path and error kind
- Filtered entries, written outputs, bytes read and written

🔒 Concurrency:
Summary is safe for concurrent use. Record refuses a second result for a path
already seen, so a worker bug shows up as a refused record instead of a
double count.

🔍 Example:

	sum := status.New()
	sum.Record(status.Result{Path: "a.txt", Outcome: status.OutcomePassthrough})
	fmt.Println(status.FormatSummary(sum.Report()))
*/
package status
