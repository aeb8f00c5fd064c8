// Package tagstore reads and rewrites the tabular tag file.
//
// The file is both the input (a "Tag" column naming the data points to
// poll) and the output (Value/Status/Timestamp columns merged in place
// per row). Merges rewrite the whole file; for CSV the rewrite goes
// through a temp file and rename so a crash leaves either the old or the
// new content, never a torn file.
//
// The store assumes no concurrent external writer. An external edit
// between the merge's read and rewrite is lost; that window is a
// documented limitation of the read-then-rewrite design.
package tagstore
