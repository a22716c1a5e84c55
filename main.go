package main

import "github.com/Norgate-AV/xsys/cmd"

func main() {
	cmd.Execute()
}
