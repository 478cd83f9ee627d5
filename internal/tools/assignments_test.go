package tools

import (
	"reflect"
	"testing"
)

func TestAssignmentsAssign(t *testing.T) {
	a := NewAssignments()

	if prev := a.Assign(0, 11); prev != 0 {
		t.Errorf("Assign(0, 11) previous = %d, want 0", prev)
	}

	id, ok := a.Get(0)
	if !ok || id != 11 {
		t.Errorf("Get(0) = %d, %v, want 11, true", id, ok)
	}

	// Assigning again should replace
	if prev := a.Assign(0, 12); prev != 11 {
		t.Errorf("reassign previous = %d, want 11", prev)
	}
	if id, _ := a.Get(0); id != 12 {
		t.Errorf("after reassign: Get(0) = %d, want 12", id)
	}
}

func TestAssignmentsRelease(t *testing.T) {
	a := NewAssignments()
	a.Assign(1, 5)

	if id := a.Release(1); id != 5 {
		t.Errorf("Release(1) = %d, want 5", id)
	}
	if _, ok := a.Get(1); ok {
		t.Error("Get(1) ok = true after release, want false")
	}

	// Releasing an empty tool is a no-op
	if id := a.Release(1); id != 0 {
		t.Errorf("second Release(1) = %d, want 0", id)
	}
}

func TestAssignmentsReleaseSpool(t *testing.T) {
	a := NewAssignments()
	a.Assign(2, 7)
	a.Assign(0, 7)
	a.Assign(1, 8)

	released := a.ReleaseSpool(7)
	if !reflect.DeepEqual(released, []int{0, 2}) {
		t.Errorf("ReleaseSpool(7) = %v, want [0 2]", released)
	}

	want := map[int]int64{1: 8}
	if got := a.All(); !reflect.DeepEqual(got, want) {
		t.Errorf("All() = %v, want %v", got, want)
	}
}

func TestAssignmentsToolsForSpool(t *testing.T) {
	a := NewAssignments()
	a.Assign(3, 9)
	a.Assign(-1, 9)
	a.Assign(0, 4)

	if got := a.ToolsForSpool(9); !reflect.DeepEqual(got, []int{-1, 3}) {
		t.Errorf("ToolsForSpool(9) = %v, want [-1 3]", got)
	}
	if got := a.ToolsForSpool(99); len(got) != 0 {
		t.Errorf("ToolsForSpool(99) = %v, want empty", got)
	}
}

func TestAssignmentsLoad(t *testing.T) {
	a := NewAssignments()
	a.Assign(5, 1)

	a.Load(map[int]int64{0: 3, 1: 0})

	want := map[int]int64{0: 3}
	if got := a.All(); !reflect.DeepEqual(got, want) {
		t.Errorf("All() = %v, want %v", got, want)
	}

	// All returns a copy
	all := a.All()
	all[9] = 9
	if _, ok := a.Get(9); ok {
		t.Error("mutating All() result changed assignments")
	}
}
