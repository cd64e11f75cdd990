package main

import "github.com/kamusis/upksearch/cmd"

func main() {
	cmd.Execute()
}
