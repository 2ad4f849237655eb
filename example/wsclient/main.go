package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mickamy/hrana-go"
	"github.com/mickamy/hrana-go/wstransport"
)

const defaultURL = "ws://localhost:8080"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func getURL() string {
	if v := os.Getenv("HRANA_URL"); v != "" {
		return v
	}
	return defaultURL
}

func run() error {
	ctx := context.Background()

	client, err := wstransport.Dial(ctx, getURL(), wstransport.WithJWT(os.Getenv("HRANA_TOKEN")))
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = client.Close() }()

	version, _ := client.GetVersion()
	fmt.Printf("connected to %s, protocol version %d\n", getURL(), version)

	stream, err := client.OpenStream(ctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer func() { _ = stream.Close() }()
	log.Printf("stream %s: opened", stream.DebugID())

	if err := stream.Sequence(ctx, "CREATE TABLE IF NOT EXISTS greetings (id INTEGER PRIMARY KEY, message TEXT)"); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	batch := stream.NewBatch()
	insert := batch.Step()
	insertStmt := hrana.NewStatement("INSERT INTO greetings (message) VALUES (?)")
	if err := insertStmt.BindByIndex(1, "hello from hrana-go"); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	if err := insert.Run(insertStmt); err != nil {
		return fmt.Errorf("define insert: %w", err)
	}

	selectAll := batch.Step()
	if err := selectAll.Condition(hrana.Ok(insert.Index())); err != nil {
		return fmt.Errorf("condition: %w", err)
	}
	if err := selectAll.Query(hrana.NewStatement("SELECT id, message FROM greetings ORDER BY id")); err != nil {
		return fmt.Errorf("define select: %w", err)
	}

	result, err := batch.Execute()
	if err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}

	if res, ok := result.Result(selectAll); ok {
		for _, row := range res.Rows {
			id, _ := row.Get(0)
			msg, _ := row.Get(1)
			fmt.Printf("greeting %v: %v\n", id, msg)
		}
	} else if respErr, failed := result.Error(selectAll); failed {
		return fmt.Errorf("select step failed: %w", respErr)
	}

	return nil
}
