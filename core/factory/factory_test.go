package factory

import (
	"errors"
	"testing"
	"time"
)

type sample struct {
	Dir     string
	Timeout time.Duration
}

type sampleConf struct {
	Dir     string        `json:"dir"`
	Timeout time.Duration `json:"timeout"`
}

func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*sample]()
	if err := reg.Register("csv", func(conf map[string]any) (*sample, error) {
		var c sampleConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &sample{Dir: c.Dir, Timeout: c.Timeout}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	inst, err := reg.Create(ModuleConfig{Type: "csv", Conf: map[string]any{"dir": "data", "timeout": "2s"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.Dir != "data" || inst.Timeout != 2*time.Second {
		t.Fatalf("unexpected module %+v", inst)
	}
}

func TestRegistry_NilConf(t *testing.T) {
	reg := NewRegistry[int]()
	_ = reg.Register("x", func(conf map[string]any) (int, error) {
		if conf == nil {
			t.Fatal("conf should never be nil")
		}
		return len(conf), nil
	})
	if _, err := reg.Create(ModuleConfig{Type: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]()
	if err := reg.Register("x", func(map[string]any) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("x", func(map[string]any) (int, error) { return 2, nil }); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := reg.Register("y", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if _, err := reg.Create(ModuleConfig{Type: "y"}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "x" {
		t.Fatalf("unexpected names %v", names)
	}
}
