/*
Package sas7bdat reads SAS7BDAT binary datasets with Go.

SAS7BDAT is the proprietary on-disk format written by SAS software. There is
no official specification; this package follows the layout established by
prior reverse-engineering efforts (the Python "sas7bdat" module and the R
"sas7bdat" vignette).

A Reader is opened once and parses the file header and column schema eagerly.
Rows are then produced lazily, in file order, by ReadRows or ReadRecords: a
page is read from disk, classified, and its rows decoded into typed cells one
at a time, with the next page prefetched in the background. Iteration can be
bounded with skip/limit, projected to a subset of columns, and cancelled via
context.Context.

Two compression schemes are supported transparently: SAS's run-length
encoding ("SASYZCRL") and its RDC back-reference codec ("SASYZCR2").
*/
package sas7bdat
