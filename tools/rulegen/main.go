// cellrules/tools/rulegen/main.go

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/cellrules/engine/pkg/ruleengine"
)

// Fixture is the JSON shape rulegen writes: a flat list of cells, each
// with its boxes and rules in the record shapes store.RedisStore.PutBox/
// PutRule accept. tools/seedstore does not read it; it writes its own
// fixed sample.
type Fixture struct {
	Cells []CellFixture `json:"cells"`
}

type CellFixture struct {
	ID    string                       `json:"id"`
	Boxes []ruleengine.BoxDefinition   `json:"boxes"`
	Rules []ruleengine.RuleDefinition  `json:"rules"`
}

var actions = []string{
	ruleengine.ActionExec, ruleengine.ActionRelay, ruleengine.ActionRelayEvent,
	ruleengine.ActionRelayData, ruleengine.ActionLog, ruleengine.ActionLogInfo,
	ruleengine.ActionLogWarn, ruleengine.ActionLogError,
}

var eventTypes = []string{"odata.create", "odata.update", "odata.delete", "cell.import"}

func main() {
	numCells, boxesPerCell, rulesPerCell, outputFile := parseFlags(os.Args[1:])

	fixture := generateFixture(numCells, boxesPerCell, rulesPerCell)

	if err := writeFixtureToFile(fixture, outputFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write fixture: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d cells (%d rules each) to %s\n", numCells, rulesPerCell, outputFile)
}

func parseFlags(args []string) (numCells, boxesPerCell, rulesPerCell int, outputFile string) {
	fs := flag.NewFlagSet("rulegen", flag.ExitOnError)
	cells := fs.Int("cells", 5, "number of cells to generate")
	boxes := fs.Int("boxes", 2, "number of boxes per cell")
	rules := fs.Int("rules", 10, "number of rules per cell")
	output := fs.String("output", "generated_fixture.json", "output file path")
	fs.Parse(args)
	return *cells, *boxes, *rules, *output
}

func generateFixture(numCells, boxesPerCell, rulesPerCell int) Fixture {
	fixture := Fixture{Cells: make([]CellFixture, numCells)}
	for i := 0; i < numCells; i++ {
		cellID := fmt.Sprintf("cell-%d", i+1)

		boxes := make([]ruleengine.BoxDefinition, boxesPerCell)
		for b := 0; b < boxesPerCell; b++ {
			boxes[b] = generateBox(b)
		}

		rules := make([]ruleengine.RuleDefinition, rulesPerCell)
		for r := 0; r < rulesPerCell; r++ {
			rules[r] = generateRule(r, boxes)
		}

		fixture.Cells[i] = CellFixture{ID: cellID, Boxes: boxes, Rules: rules}
	}
	return fixture
}

func generateBox(index int) ruleengine.BoxDefinition {
	name := gofakeit.Word() + fmt.Sprintf("box%d", index+1)
	return ruleengine.BoxDefinition{
		ID:     fmt.Sprintf("box-%d", index+1),
		Name:   name,
		Schema: gofakeit.URL(),
	}
}

func generateRule(index int, boxes []ruleengine.BoxDefinition) ruleengine.RuleDefinition {
	action := actions[gofakeit.Number(0, len(actions)-1)]
	external := gofakeit.Bool()

	rule := ruleengine.RuleDefinition{
		Name:     fmt.Sprintf("rule-%d-%s", index+1, gofakeit.Word()),
		External: &external,
		Type:     eventTypes[gofakeit.Number(0, len(eventTypes)-1)],
		Info:     gofakeit.LoremIpsumSentence(6),
		Action:   action,
	}

	switch action {
	case ruleengine.ActionRelay, ruleengine.ActionRelayEvent, ruleengine.ActionRelayData:
		if len(boxes) > 0 {
			box := boxes[gofakeit.Number(0, len(boxes)-1)]
			rule.BoxName = box.Name
			rule.Service = fmt.Sprintf("localbox:/%s", gofakeit.Word())
		}
	case ruleengine.ActionExec:
		rule.Service = gofakeit.URL()
	}

	return rule
}

func writeFixtureToFile(fixture Fixture, path string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling fixture: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
