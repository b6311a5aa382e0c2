// cellrules/tools/seedstore/main.go

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cellrules/engine/pkg/ruleengine"
	"github.com/cellrules/engine/pkg/store"
)

var ctx = context.Background()

func main() {
	addr := flag.String("addr", "localhost:6379", "redis address")
	password := flag.String("password", "", "redis password")
	db := flag.Int("db", 0, "redis database")
	topic := flag.String("topic", "rule", "control-plane pub/sub topic")
	flag.Parse()

	rdb, err := store.NewRedisStore(*addr, *password, *db, *topic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to redis: %v\n", err)
		os.Exit(1)
	}

	if err := seed(rdb); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed store: %v\n", err)
		os.Exit(1)
	}

	startCLI(rdb)
}

// seed writes a small sample tenant: one cell, one box, and two rules (one
// linked to the box, one unlinked), so seedstore's CLI has something to
// exercise immediately.
func seed(rdb *store.RedisStore) error {
	cellID := "cell1"

	if err := rdb.PutBox(ctx, cellID, ruleengine.BoxDefinition{
		ID: "box1", Name: "weatherbox", Schema: "http://localhost:8080/weather-schema",
	}); err != nil {
		return fmt.Errorf("seeding box: %w", err)
	}

	external := false
	if err := rdb.PutRule(ctx, cellID, ruleengine.RuleDefinition{
		Name: "LogAllUpdates", Action: ruleengine.ActionLog, External: &external,
	}); err != nil {
		return fmt.Errorf("seeding rule LogAllUpdates: %w", err)
	}
	if err := rdb.PutRule(ctx, cellID, ruleengine.RuleDefinition{
		Name: "RelayToWeatherBox", Action: ruleengine.ActionRelay, External: &external,
		BoxName: "weatherbox", Service: "localbox:/ingest",
	}); err != nil {
		return fmt.Errorf("seeding rule RelayToWeatherBox: %w", err)
	}

	fmt.Printf("seeded cell %q with box %q and 2 rules\n", cellID, "weatherbox")
	return nil
}

func startCLI(rdb *store.RedisStore) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("commands: publish <cellId> <eventType> [object] [info]  |  reseed  |  exit")

	for {
		fmt.Print("> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" {
			return
		}
		if input == "reseed" {
			if err := seed(rdb); err != nil {
				fmt.Printf("error: %v\n", err)
			}
			continue
		}
		if err := processCommand(rdb, input); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func processCommand(rdb *store.RedisStore, input string) error {
	fields := strings.Fields(input)
	if len(fields) < 3 || fields[0] != "publish" {
		return fmt.Errorf("invalid command. Use 'publish <cellId> <eventType> [object] [info]'")
	}

	event := &ruleengine.Event{CellID: fields[1], Type: fields[2]}
	if len(fields) > 3 {
		event.Object = fields[3]
	}
	if len(fields) > 4 {
		event.Info = fields[4]
	}

	if err := rdb.Publish(ctx, event); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	fmt.Printf("published %s for cell %s\n", event.Type, event.CellID)
	return nil
}
