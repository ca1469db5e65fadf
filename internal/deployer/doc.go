// Package deployer keeps a bundle of native libraries extracted, complete and
// at the expected version in an application-private directory.
//
// EnsureDeployed checks the directory first. Only when a required file is
// missing or the version marker does not match does it wipe the directory,
// stage the packaged archive into it, run the decoder and write the marker:
//
//	d, err := deployer.New(&deployer.Options{...})
//	if err != nil { ... }
//	if d.EnsureDeployed(ctx) {
//		loader.Load(d.LibraryPath("libijkffmpeg.so"))
//	}
//
// The deployer prepares libraries for loading but never loads them.
package deployer
