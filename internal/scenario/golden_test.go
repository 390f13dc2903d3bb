package scenario

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScenarioGoldens runs every scenario under testdata/scenarios and
// compares its canonical trace against the matching golden file.
func TestScenarioGoldens(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no scenario files found")

	for _, path := range files {
		sc, err := Load(path)
		require.NoError(t, err, path)

		t.Run(sc.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, sc))
		})
	}
}
