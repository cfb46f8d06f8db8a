// Package merge combines delimited text files into one output file.
//
// It is independent of any transport: the CLI, the HTTP server and tests all
// drive it through [Merger.Run] or [Merger.MergeFile].
//
// # Algorithm
//
// A merge reads every input twice:
//
//  1. Pass 1 opens each [Source] in order, detects its encoding and delimiter
//     when they are not given, and reads only the header row.
//  2. The unified header is the ordered union of all input headers, in
//     first-seen order. With [Options.StrictHeader] it is the first non-empty
//     input's header instead, and any input with extra columns fails the merge.
//  3. The unified header is written, followed by pass 2: each input is reopened
//     and its rows are projected onto the unified header by column name.
//     Columns an input lacks are filled with [Options.FillValue].
//
// Row order is input order, then file order. Nothing is sorted.
//
// # Malformed Rows
//
// A row with more fields than its header has columns loses the extra fields; a
// row with fewer is padded with the fill value. Either case is a field
// mismatch: the merge continues and the event is counted in the [Report].
//
// # Error Handling
//
// Fatal errors are returned as *[Error] with a [Kind]:
//
//   - KindSourceUnreadable: an input cannot be opened, decoded or parsed
//   - KindNoInputs: no inputs, or every input is empty
//   - KindHeaderConflict: strict header mode found an extra column
//   - KindOutputFailed: the output could not be written or committed
//   - KindCancelled: the context was cancelled mid-merge
//
// [MergeFile] writes to a temporary file next to the destination and renames
// it into place only after the merge succeeds, so a failed merge never leaves
// a committed output behind.
//
// Errors map to user-facing messages with support codes via [MapError]:
//
//   - MRG001-MRG099: merge errors (no inputs, header conflicts, options)
//   - FILE001-FILE099: file errors (open, encoding, format, size)
//   - OUT001-OUT099: output errors
//   - UPL001-UPL099: request errors (busy, cancelled, timeout)
package merge
