package hdf5

import (
	"errors"
	"reflect"
	"testing"
)

func TestWalk(t *testing.T) {
	f := openFixture(t)

	var groups, datasets []string
	err := Walk(f.Root(), func(path string, obj any, err error) error {
		if err != nil {
			return err
		}
		switch obj.(type) {
		case *Group:
			groups = append(groups, path)
		case *Dataset:
			datasets = append(datasets, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if !reflect.DeepEqual(groups, []string{"/", "/velocity", "/pressure"}) {
		t.Errorf("groups = %v", groups)
	}
	wantDatasets := []string{"/velocity/0", "/velocity/1", "/velocity/2", "/pressure/0", "/mask", "/time_keys"}
	if !reflect.DeepEqual(datasets, wantDatasets) {
		t.Errorf("datasets = %v", datasets)
	}
}

func TestWalkSkipGroup(t *testing.T) {
	f := openFixture(t)

	var visited []string
	err := Walk(f.Root(), func(path string, obj any, err error) error {
		visited = append(visited, path)
		if path == "/velocity" {
			return SkipGroup
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	for _, p := range visited {
		if p == "/velocity/0" {
			t.Error("skipped group members were visited")
		}
	}
	if len(visited) != 6 {
		t.Errorf("visited %d objects: %v", len(visited), visited)
	}
}

func TestWalkStop(t *testing.T) {
	f := openFixture(t)
	stop := errors.New("stop")

	calls := 0
	err := Walk(f.Root(), func(path string, obj any, err error) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("expected stop error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
