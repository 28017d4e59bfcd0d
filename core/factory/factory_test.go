package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct{ Path string }

type sampleConf struct {
	Path    string `json:"path"`
	Retries int    `json:"retries"`
}

func newSampleRegistry(t *testing.T) *Registry[*sample] {
	t.Helper()
	reg := NewRegistry[*sample]()
	require.NoError(t, reg.Register("file", func(conf map[string]any) (*sample, error) {
		var c sampleConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &sample{Path: c.Path}, nil
	}))
	return reg
}

func TestRegistry_Create(t *testing.T) {
	reg := newSampleRegistry(t)
	inst, err := reg.Create(ModuleConfig{Type: "file", Conf: map[string]any{"path": "/tmp/x"}})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", inst.Path)
}

func TestRegistry_Errors(t *testing.T) {
	reg := newSampleRegistry(t)
	if err := reg.Register("file", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if err := reg.Register("file", func(map[string]any) (*sample, error) { return nil, nil }); err == nil {
		t.Fatal("expected duplicate error")
	}
	_, err := reg.Create(ModuleConfig{Type: "influx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file")
}

func TestRegistry_CreateAll(t *testing.T) {
	reg := newSampleRegistry(t)
	out, err := reg.CreateAll([]ModuleConfig{
		{Type: "file", Conf: map[string]any{"path": "a"}},
		{Type: "file", Conf: map[string]any{"path": "b"}},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[1].Path)

	_, err = reg.CreateAll([]ModuleConfig{{Type: "file"}, {Type: "nope"}})
	assert.Error(t, err)
}

func TestDecodeWeakTypes(t *testing.T) {
	var c sampleConf
	require.NoError(t, Decode(map[string]any{"path": "p", "retries": "3"}, &c))
	assert.Equal(t, 3, c.Retries)
}
