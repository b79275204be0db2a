package main

import "github.com/quayside-cd/quayside/cmd/root"

func main() {
	root.Execute()
}
