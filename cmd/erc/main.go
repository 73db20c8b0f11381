package main

import "github.com/OpenTraceLab/OpenTraceERC/cmd/erc/cmd"

func main() {
	cmd.Execute()
}
