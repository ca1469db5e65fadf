// Package deploy wires the library deployer into the host application:
// it loads settings, resolves the private library directory, ensures the
// bundle is deployed and then hands the requested libraries to the loader.
package deploy
