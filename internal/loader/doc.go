// Package loader hands deployed shared libraries to the dynamic linker.
//
// Libraries are opened with RTLD_NOW|RTLD_GLOBAL so that a library loaded
// later can resolve symbols of one loaded earlier, which is how dependent
// bundles (for example a player on top of its codec library) are loaded.
package loader
