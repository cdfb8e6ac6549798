// Package pipeline drives the mass recomputation over a whole candidate
// table.
//
// It prepares the input columns, splits the table into row-range chunks,
// processes the chunks on a bounded set of workers sharing one immutable
// recomputer, and reassembles the output in input order. The pipeline
// does not own domain logic; it delegates to masscorr and brem.
package pipeline
