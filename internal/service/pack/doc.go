// Package pack builds the packaged bundle archive that the deployer ships.
package pack
