/*
Package operation runs redacter commands over storage providers.

	+------------+     Entries     +-----------+     Redact     +----------+
	| Enumerator | --------------> |  workers  | -------------> |  Engine  |
	+------------+                 +-----+-----+                +----------+
	                                     |
	                                   Write
	                                     |
	                               +-----+------+
	                               | destination|
	                               +------------+

🎯 Purpose:
- Copy walks a source, redacts each entry and writes the result
- List walks a source with the same filters and nothing else

🔄 Per-entry stages:
 1. enumerated: the entry passed the filters
 2. fetched: content is read wholly into memory
 3. resolved: the content category is known
 4. redacted: the engine chose a plan and applied it (or copied, or skipped)
 5. written: every output was committed to the destination

The context is checked between stages. A cancelled run stops taking new
entries; backend calls already in flight finish on their own.

⚡ Failure handling:
- An entry that fails becomes a failed Result and the run goes on
- Fatal storage and backend errors (credentials, a missing bucket) cancel the run
- A source with several entries and a destination that holds one fails before
  any entry is processed
- The destination is closed after a finished run, and discarded after an
  aborted one, so container writes are never half committed

🔍 Example:

	report, err := operation.Copy(ctx, src, dst, operation.CopyOptions{
		Filter:  enumerate.Options{MaxFiles: 10},
		Engine:  engine,
		Workers: 8,
	})
*/
package operation
