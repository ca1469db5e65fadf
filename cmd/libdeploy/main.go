package main

import "github.com/oshokin/libdeploy/cmd/libdeploy/cmd"

func main() {
	cmd.Execute()
}
