package rule

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatch_ReloadsAndRejects(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(kindnessJSON), 0600))

	type revision struct {
		rs  *RuleSet
		err error
	}
	revisions := make(chan revision, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(rs *RuleSet, err error) {
			revisions <- revision{rs: rs, err: err}
		})
	}()

	// give the watcher a moment to register the directory
	time.Sleep(100 * time.Millisecond)

	updated := `{"rules": [{"category": "mercy", "keywords": ["mercy"], "weight": 2, "polarity": 1}]}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0600))

	select {
	case r := <-revisions:
		require.NoError(t, r.err)
		require.NotNil(t, r.rs)
		assert.Equal(t, Category("mercy"), r.rs.Rules[0].Category)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	require.NoError(t, os.WriteFile(path, []byte(`{"rules": []}`), 0600))

	select {
	case r := <-revisions:
		assert.Nil(t, r.rs)
		assert.ErrorIs(t, r.err, ErrInvalidConfig)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rejected reload")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_Args(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, Watch(ctx, "", func(*RuleSet, error) {}), ErrInvalidConfig)
	assert.Error(t, Watch(ctx, "rules.json", nil))
}
