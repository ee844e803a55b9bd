package main

import "github.com/oshokin/kicad-plugin-install/cmd/kicad-plugin-install/cmd"

func main() {
	cmd.Execute()
}
