package main

import "github.com/geekxflood/ndpsdecode/cmd"

func main() {
	cmd.Execute()
}
