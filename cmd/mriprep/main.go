package main

import "github.com/marccodess/brain-tumor-detection/internal/cli"

func main() {
	cli.Execute()
}
