package main

import "pyhabit/cmd"

func main() {
	cmd.Execute()
}
