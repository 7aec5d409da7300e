package main

import "github.com/nethalo/dbexec/cmd"

func main() {
	cmd.Execute()
}
