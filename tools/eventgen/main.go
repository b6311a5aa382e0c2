// cellrules/tools/eventgen/main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/cellrules/engine/pkg/ruleengine"
	"github.com/cellrules/engine/pkg/store"
)

var eventTypes = []string{"odata.create", "odata.update", "odata.delete"}

func main() {
	addr := flag.String("addr", "localhost:6379", "redis address")
	password := flag.String("password", "", "redis password")
	db := flag.Int("db", 0, "redis database")
	topic := flag.String("topic", "rule", "broker channel a running engine is subscribed to")
	rate := flag.Int("rate", 10, "events published per second")
	cells := flag.Int("cells", 3, "number of distinct cell ids to spread events across")
	flag.Parse()

	rdb, err := store.NewRedisStore(*addr, *password, *db, *topic)
	if err != nil {
		fmt.Printf("failed to connect to redis: %v\n", err)
		return
	}

	fmt.Printf("publishing to %q on %s at %d events/sec across %d cells\n", *topic, *addr, *rate, *cells)

	ctx := context.Background()
	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	for range ticker.C {
		event := randomEvent(*cells)
		if err := rdb.Publish(ctx, event); err != nil {
			fmt.Printf("failed to publish event: %v\n", err)
			continue
		}
		fmt.Printf("published %s for cell %s (subject=%s)\n", event.Type, event.CellID, event.Subject)
	}
}

func randomEvent(cellCount int) *ruleengine.Event {
	return &ruleengine.Event{
		CellID:   fmt.Sprintf("cell%d", rand.Intn(cellCount)+1),
		External: true,
		Type:     eventTypes[rand.Intn(len(eventTypes))],
		Subject:  fmt.Sprintf("http://localhost:8080/cells/cell%d/", rand.Intn(cellCount)+1),
		Info:     fmt.Sprintf("%.2f", rand.Float64()*100),
	}
}
