package main

import "packsync/cmd"

func main() {
	cmd.Execute()
}
