// Package btree walks the B-trees HDF5 uses to find group members and
// dataset chunks.
//
// Version 1 trees ("TREE") index old-style groups, whose leaves point at
// symbol table nodes ("SNOD") with names kept in a local heap, and chunked
// datasets written with the v1 layout message. Version 2 trees ("BTHD")
// index the links of dense groups in record types 5 (name hash) and 6
// (creation order), and chunks in record types 10 (unfiltered) and 11
// (filtered).
//
// Both chunk readers flatten the tree into a [ChunkIndex] of [ChunkEntry]
// values carrying each chunk's element offset, address, stored size and
// filter mask.
package btree
