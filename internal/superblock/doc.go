// Package superblock locates and decodes the HDF5 superblock, and writes
// the version 2 superblock used for new files.
//
// [Read] checks offsets 0, 512, 1024 and 2048 for the format signature and
// understands versions 0 through 3. The widths it reports for offsets and
// lengths drive every other reader in the file, see [Superblock.ReaderConfig].
package superblock
