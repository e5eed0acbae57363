package engine

import (
	"reflect"
	"testing"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
)

func TestRemoveDropsRequested(t *testing.T) {
	current := []addon.Descriptor{desc("x", "1", false), desc("y", "1", true), desc("z", "1", false)}
	newColl, protected := Remove(current, []string{"x", "y"})
	if got := collectionIDs(newColl); !reflect.DeepEqual(got, []string{"y", "z"}) {
		t.Fatalf("expected [y z], got %v", got)
	}
	if !reflect.DeepEqual(protected, []string{"y"}) {
		t.Fatalf("expected protected=[y], got %v", protected)
	}
}

func TestRemoveUnknownIDsIgnored(t *testing.T) {
	current := []addon.Descriptor{desc("a", "1", false)}
	newColl, protected := Remove(current, []string{"nope"})
	if got := collectionIDs(newColl); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected collection unchanged, got %v", got)
	}
	if len(protected) != 0 {
		t.Fatalf("expected no protected ids, got %v", protected)
	}
}

func TestRemovePreservesOrder(t *testing.T) {
	current := []addon.Descriptor{desc("a", "1", false), desc("b", "1", false), desc("c", "1", false)}
	newColl, _ := Remove(current, []string{"b"})
	if got := collectionIDs(newColl); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("expected [a c], got %v", got)
	}
}

func TestRemoveDoesNotMutateInput(t *testing.T) {
	current := []addon.Descriptor{desc("a", "1", false), desc("b", "1", false)}
	snapshot := addon.CloneCollection(current)
	Remove(current, []string{"a"})
	if !reflect.DeepEqual(current, snapshot) {
		t.Fatalf("input collection was mutated: %+v", current)
	}
}
