// Package message decodes and encodes HDF5 object header messages.
//
// Decoded message types:
//
//   - Dataspace (0x0001): dataset dimensions. See [Dataspace].
//   - Datatype (0x0003): element type. See [Datatype].
//   - Fill Value (0x0005): fill value for unwritten data.
//   - Link (0x0006): a named link to another object. See [Link].
//   - Data Layout (0x0008): compact, contiguous or chunked storage. See [DataLayout].
//   - Filter Pipeline (0x000B): filters applied to chunks. See [FilterPipeline].
//   - Continuation (0x0010): more header data elsewhere in the file.
//   - Symbol Table (0x0011): v1 group B-tree and local heap. See [SymbolTable].
//
// Anything else, attributes included, is kept as [Unknown].
//
// Messages that can be written implement [Encoder]: the dataspace, numeric
// and fixed-length string datatypes, layouts, links and the two group
// bookkeeping messages.
package message
