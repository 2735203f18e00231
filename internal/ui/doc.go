// Package ui renders run progress and the final repository status table for console users.
//
// Progress lines go to the diagnostic stream while the table is written to standard output,
// so that the report can be piped without the progress noise.
package ui
