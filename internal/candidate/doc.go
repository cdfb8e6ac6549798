// Package candidate holds the tabular data model: one Row per decay
// candidate, a Table of rows, and the column naming contract shared by
// every stage ("L1_PX", "L2_TRACK_PZ", "B_END_VX", ...).
//
// Rows are mutable in place. Correction stages read raw columns and write
// corrected kinematics back; nothing is kept across rows.
package candidate
