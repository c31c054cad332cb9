package main

import "github.com/tetherlab/tether/cmd/tether/cmd"

func main() {
	cmd.Execute()
}
