// Package report renders stored measurements for the user: a short
// fixed-width history table and a full CSV export.
//
// The export artifact is a temporary file. Callers own its lifetime and
// must call Artifact.Remove once delivery has been attempted, whether or
// not it succeeded.
//
// CSV layout:
//
//	SYS,DIA,PULS,DATE
//	120,80,65,2024-03-01 07:30:15
//
// DATE is the stored timestamp, unchanged.
package report
