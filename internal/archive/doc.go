// Package archive reads and writes library bundle archives.
//
// A bundle is a tar stream, optionally compressed with zstd or gzip, whose
// top-level directories are platform variants:
//
//	arm/libijkffmpeg.so
//	arm/libijkplayer.so
//	x86/libijkffmpeg.so
//
// TarDecoder extracts one variant into a destination directory with the
// variant prefix stripped. Pack produces such archives from a directory.
package archive
