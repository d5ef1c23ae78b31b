package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/seb7887/gofw/httpx"
	"github.com/seb7887/gofw/httpx/settings"
	"github.com/seb7887/gofw/httpx/transport"
	"go.uber.org/zap"
)

type pokemon struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Height int    `json:"height"`
	Weight int    `json:"weight"`
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	s := settings.Defaults("pokeapi")
	s.URL = "https://pokeapi.co"
	s.Backend = settings.BackendHTTP2
	s.LoggerLevel = settings.LoggerBasic
	s.DefaultHeaders = map[string]string{"Accept": "application/json"}
	s.Retry.MaxAttempts = 3

	tr, err := transport.NewBuilder(nil, transport.WithLogger(logger)).Build(s, settings.DefaultPool())
	if err != nil {
		log.Fatalf("building transport: %v", err)
	}

	client, err := httpx.NewFromSettings(s, tr, httpx.Deps{Logger: logger})
	if err != nil {
		log.Fatalf("building client: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(ctx)
	}()

	ctx := context.Background()

	ditto, err := httpx.Dispatch[pokemon](ctx, client, httpx.Call{
		Operation: "PokeAPI#GetByName",
		Path:      "/api/v2/pokemon/%s",
		PathArgs:  []any{"ditto"},
	})
	if err != nil {
		log.Fatalf("lookup failed: %v", err)
	}
	fmt.Printf("%s: height=%d weight=%d\n", ditto.Name, ditto.Height, ditto.Weight)

	// A 4xx keeps the upstream body for the caller
	_, err = httpx.Dispatch[pokemon](ctx, client, httpx.Call{
		Operation: "PokeAPI#GetByName",
		Path:      "/api/v2/pokemon/%s",
		PathArgs:  []any{"missingno"},
	})
	var classified *httpx.ClassifiedError
	if errors.As(err, &classified) {
		fmt.Printf("upstream said %d: %q\n", classified.StatusCode, classified.Body)
	}

	// Plain requests skip decoding and classification
	resp, err := client.Do(ctx, &httpx.Request{
		Method:  http.MethodGet,
		Path:    "/api/v2/pokemon",
		Query:   map[string][]string{"limit": {"5"}},
		Options: []httpx.RequestOption{httpx.WithCorrelationID("example-run"), httpx.WithoutRetry()},
	})
	if err != nil {
		log.Fatalf("listing failed: %v", err)
	}
	defer resp.Body.Close()
	fmt.Printf("list status: %d\n", resp.StatusCode)
}
