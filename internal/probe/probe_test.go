package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiprobe/apiprobe/internal/runner"
)

func noopFactory(name string) Factory {
	return func(Env) runner.Job {
		return runner.Job{Name: name, Run: func(context.Context) error { return nil }}
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("status", noopFactory("status")))

	t.Run("duplicate name", func(t *testing.T) {
		err := r.Register("status", noopFactory("status"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateCheck)
	})

	t.Run("empty name", func(t *testing.T) {
		err := r.Register("", noopFactory(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name must not be empty")
	})

	t.Run("nil factory", func(t *testing.T) {
		err := r.Register("broken", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "factory must not be nil")
	})
}

func TestRegistry_MustRegister(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("status", noopFactory("status"))

	assert.Panics(t, func() {
		r.MustRegister("status", noopFactory("status"))
	})
}

func TestRegistry_Build(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("status", noopFactory("status")))

	t.Run("known check", func(t *testing.T) {
		job, err := r.Build("status", Env{})
		require.NoError(t, err)
		assert.Equal(t, "status", job.Name)
		assert.NotNil(t, job.Run)
	})

	t.Run("unknown check", func(t *testing.T) {
		_, err := r.Build("missing", Env{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownCheck)
		assert.Contains(t, err.Error(), `"missing"`)
	})
}

func TestRegistry_BuildAll(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("zulu", noopFactory("zulu")))
	require.NoError(t, r.Register("alpha", noopFactory("alpha")))
	require.NoError(t, r.Register("mike", noopFactory("mike")))

	t.Run("explicit subset keeps order", func(t *testing.T) {
		jobs, err := r.BuildAll([]string{"mike", "alpha"}, Env{})
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "mike", jobs[0].Name)
		assert.Equal(t, "alpha", jobs[1].Name)
	})

	t.Run("empty selection builds all in name order", func(t *testing.T) {
		jobs, err := r.BuildAll(nil, Env{})
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, "alpha", jobs[0].Name)
		assert.Equal(t, "mike", jobs[1].Name)
		assert.Equal(t, "zulu", jobs[2].Name)
	})

	t.Run("unknown name fails the whole build", func(t *testing.T) {
		jobs, err := r.BuildAll([]string{"alpha", "missing"}, Env{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownCheck)
		assert.Nil(t, jobs)
	})
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("zulu", noopFactory("zulu")))
	require.NoError(t, r.Register("alpha", noopFactory("alpha")))

	assert.Equal(t, []string{"alpha", "zulu"}, r.Names())
}

func TestDefaults(t *testing.T) {
	r := Defaults()
	assert.Equal(t, []string{"burst", "echo", "status"}, r.Names())
}
