package main

import (
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/cli"
)

func main() {
	cli.Execute()
}
