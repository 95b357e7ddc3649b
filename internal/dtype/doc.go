// Package dtype converts between raw HDF5 element bytes and Go values.
//
// Numeric datatypes (fixed-point of 1, 2, 4 or 8 bytes and IEEE floats of 4
// or 8 bytes, either byte order) decode into any Go numeric slice through
// [Decode]; [ToFloat64] is the shortcut used for slab extraction. Fixed-length
// strings decode through [DecodeStrings]. Other classes can be described by
// [Name] but not converted.
//
// [Encode] and [DatatypeOf] go the other way for the slice types the writer
// accepts.
package dtype
