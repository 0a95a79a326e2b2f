// Package main is the entry point for the aegis alert triage service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/aegis/cmd/aegis/app"
)

func main() {
	app.NewApp().Run()
}
