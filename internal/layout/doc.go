// Package layout reads and writes the raw data of HDF5 datasets.
//
// Every storage class implements [Layout], which offers a full read and a
// hyperslab read (start/count per dimension, row-major result):
//
//   - [Compact]: data held in the object header.
//   - [Contiguous]: one block in the file. ReadSlice reads only the
//     selected runs, merging trailing dimensions that are selected whole.
//   - [Chunked]: data split into chunks located through a chunk index and
//     passed through the filter pipeline. ReadSlice decodes only chunks
//     intersecting the selection.
//
// Chunk indexes are chosen from the layout message: version 1 B-trees for
// layout messages up to version 3, and single chunk, implicit, fixed array,
// extensible array or version 2 B-tree for version 4.
//
// [ChunkWriter] produces unfiltered chunked storage with a single chunk or
// fixed array index.
package layout
