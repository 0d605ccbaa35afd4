package main

import "github.com/oshokin/nursery-speaker/cmd/nursery-speaker/cmd"

func main() {
	cmd.Execute()
}
