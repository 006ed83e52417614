package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"safetalk.app/mediator/tools/linters/enumvalidator"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
