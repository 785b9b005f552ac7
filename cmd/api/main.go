package main

import "milesofsmiles/api/internal/cli"

func main() {
	cli.Execute()
}
