package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type counter struct {
	ran []string
}

func record(name string, err error) func(context.Context, *counter) error {
	return func(_ context.Context, c *counter) error {
		c.ran = append(c.ran, name)
		return err
	}
}

func TestRunSteps(t *testing.T) {
	t.Run("non-fatal failures become warnings", func(t *testing.T) {
		state := &counter{}
		steps := []step[counter]{
			{name: "a", fatal: true, run: record("a", nil)},
			{name: "b", run: record("b", errors.New("flaky"))},
			{name: "c", fatal: true, run: record("c", nil)},
		}

		warnings, err := runSteps(context.Background(), state, steps, testLogger(), nil)
		assert.NoError(t, err)
		assert.Equal(t, []string{"b: flaky"}, warnings)
		assert.Equal(t, []string{"a", "b", "c"}, state.ran)
	})

	t.Run("fatal failure stops the run", func(t *testing.T) {
		state := &counter{}
		boom := errors.New("boom")
		steps := []step[counter]{
			{name: "a", run: record("a", errors.New("minor"))},
			{name: "b", fatal: true, run: record("b", boom)},
			{name: "c", run: record("c", nil)},
		}

		warnings, err := runSteps(context.Background(), state, steps, testLogger(), nil)
		assert.ErrorIs(t, err, boom)
		assert.Len(t, warnings, 1)
		assert.Equal(t, []string{"a", "b"}, state.ran)
	})

	t.Run("when guards skip steps", func(t *testing.T) {
		state := &counter{}
		never := func(*counter) bool { return false }
		steps := []step[counter]{
			{name: "a", when: never, run: record("a", nil)},
			{name: "b", run: record("b", nil)},
		}

		_, err := runSteps(context.Background(), state, steps, testLogger(), nil)
		assert.NoError(t, err)
		assert.Equal(t, []string{"b"}, state.ran)
	})

	t.Run("emits one update per executed step", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 8)
		steps := []step[counter]{
			{name: "a", phase: CheckQuota, run: record("a", nil)},
			{name: "b", phase: GenerateDraft, when: func(*counter) bool { return false }, run: record("b", nil)},
			{name: "c", phase: ParseDraft, run: record("c", nil)},
		}

		_, _ = runSteps(context.Background(), &counter{}, steps, testLogger(), progress)
		close(progress)

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		assert.Equal(t, []Phase{CheckQuota, ParseDraft}, phases)
	})
}
