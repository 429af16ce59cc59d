/*
Package storage unifies the places redacter can copy between.

	                 +-------------+
	                 |  Provider   |
	                 | list / open |
	                 |   / create  |
	                 +------+------+
	                        |
	   +--------+--------+--+-----+-----------+
	   |        |        |        |           |
	+--+--+ +---+--+ +---+--+ +---+---+ +-----+-----+
	|local| |  s3  | |  gs  | |  zip  | | clipboard |
	+-----+ +------+ +------+ +-------+ +-----------+

🎯 Purpose:
- One contract for listing, reading and writing entries
- Lazy listings (iter.Seq2) so callers can stop pagination
- Scoped writes: a Sink publishes only on Commit

📍 Locations:
  - some/path, file:///abs/path   local filesystem
  - s3://bucket/prefix/           AWS S3 (trailing slash = prefix)
  - gs://bucket/prefix/           Google Cloud Storage
  - zip://path/to/archive.zip     zip archive, rebuilt on Close
  - clipboard://                  one synthetic text entry

🚦 Errors:
Every backend classifies failures into an *Error with a Kind: NotFound,
PermissionDenied, Transient or Fatal. Fatal means no later item can succeed
(bad credentials, missing bucket).

📦 Capabilities:
  - AcceptsMultiple: false for the clipboard and single-object roots
  - IncrementalWrites: false for zip; staged entries are written on Close
    and dropped by Discard
*/
package storage
