// Package object reads and writes HDF5 object headers.
//
// [Read] accepts both the version 1 layout (8-byte aligned messages, chained
// through continuation messages) and version 2 ("OHDR", checksummed, with
// "OCHK" continuation blocks). New headers are always written as version 2.
package object
