// Command pokegateway serves PokeAPI lookups through one configured httpx
// client per transport backend.
package main

import (
	"log"

	"go.uber.org/fx"
)

func main() {
	e, err := ParseEnv()
	if err != nil {
		log.Fatal(err)
	}
	cfg, err := LoadConfig(e)
	if err != nil {
		log.Fatal(err)
	}

	fx.New(
		fx.NopLogger,
		fx.Supply(e, cfg),
		Module,
	).Run()
}
