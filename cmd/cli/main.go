package main

import (
	"github.com/mchmarny/agape/pkg/cli"
)

func main() {
	cli.Execute()
}
