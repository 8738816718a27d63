//go:build e2e

package e2e

import (
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/onesheet/internal/agent"
	"github.com/dusk-indust/onesheet/internal/export"
)

var update = flag.Bool("update", false, "update golden files")

func goldenPath() string {
	return testdataPath("golden", "meal-kit.md")
}

// TestGolden compares the Markdown brief of the fixture run against the
// golden file. If it does not exist, the test is skipped with a message to
// run with -update.
func TestGolden(t *testing.T) {
	res, _ := runMealKit(t, agent.NewDraftAgent("e2e"))
	actual := export.Markdown(res.TargetID, res.Aggregate)

	golden, err := os.ReadFile(goldenPath())
	if os.IsNotExist(err) {
		t.Skip("golden file not found; run with -update to generate")
	}
	require.NoError(t, err)
	assert.Equal(t, string(golden), actual)
}

// TestUpdateGolden regenerates the golden file.
// Run with: go test -tags e2e -run TestUpdateGolden ./internal/e2e/ -update
func TestUpdateGolden(t *testing.T) {
	if !*update {
		t.Skip("skipping golden file update; run with -update flag")
	}
	res, _ := runMealKit(t, agent.NewDraftAgent("e2e"))

	require.NoError(t, os.MkdirAll(testdataPath("golden"), 0o755))
	require.NoError(t, os.WriteFile(goldenPath(), []byte(export.Markdown(res.TargetID, res.Aggregate)), 0o644))
	t.Logf("updated %s", goldenPath())
}
