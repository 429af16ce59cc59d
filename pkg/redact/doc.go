/*
Package redact orchestrates external DLP backends over buffered items.

🧭 Planning:
For an item category the engine picks every backend with native support,
in configured order. Only when there is none does it pick every backend
whose conversion route is available:

	markup, table  -> text              (text backends)
	image          -> OCR text          (text backends, needs tesseract)
	pdf            -> page images       (image backends, needs pdftoppm)
	pdf            -> page images + OCR (text backends, needs both)

🔗 Chaining:
The chosen backends run one after another. Each sees the content as
redacted by the ones before it and findings accumulate.

✂️ Sampling:
With a sampling bound only the leading bytes (rune aligned) or rows are
inspected. The rest is copied raw or dropped according to TailPolicy.

🚥 Limits:
Every call takes a slot from the run's RateLimiter. Transient errors retry
with exponential backoff; unauthenticated errors abort the run.
*/
package redact
