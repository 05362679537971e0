package sim

import (
	"testing"
)

func TestItem_Assemble_FirstChildKeyedByTypeName(t *testing.T) {
	frame := testItem(1, &Order{Name: "frame"})
	wheel := testItem(2, &Order{Name: "wheel"})

	frame.Assemble(wheel)

	if got := frame.Child("wheel"); got != wheel {
		t.Errorf("Child(wheel) = %v, want item 2", got)
	}
}

func TestItem_Assemble_DuplicateTypeGetsSuffixedKeys(t *testing.T) {
	// GIVEN a parent mounting three wheels
	frame := testItem(1, &Order{Name: "frame"})
	wheels := &Order{Name: "wheel"}
	for id := int64(2); id <= 4; id++ {
		frame.Assemble(testItem(id, wheels))
	}

	// THEN the first keeps the plain key and later ones get suffixes
	keys := frame.ChildKeys()
	want := []string{"_wheel2", "_wheel3", "wheel"}
	if len(keys) != len(want) {
		t.Fatalf("ChildKeys() = %v, want %v", keys, want)
	}
	for i, w := range want {
		if keys[i] != w {
			t.Errorf("key[%d]: got %s, want %s", i, keys[i], w)
		}
	}
}

func TestItem_Assemble_SecondParentPanics(t *testing.T) {
	frame := testItem(1, &Order{Name: "frame"})
	other := testItem(2, &Order{Name: "frame"})
	wheel := testItem(3, &Order{Name: "wheel"})
	frame.Assemble(wheel)

	defer func() {
		if recover() == nil {
			t.Error("assembling an already-mounted item should panic")
		}
	}()
	other.Assemble(wheel)
}

func TestItem_MarkReject_IsOneWay(t *testing.T) {
	it := testItem(1, &Order{Name: "part"})
	if it.Rejected() {
		t.Fatal("fresh item should not be rejected")
	}

	it.MarkReject()
	it.MarkReject()

	if !it.Rejected() {
		t.Error("rejected flag lost")
	}
}

func TestItem_StepStartsBeforeFirstStage(t *testing.T) {
	it := testItem(1, &Order{Name: "part"})
	if it.Step() != -1 {
		t.Errorf("Step() = %d, want -1 before entering any stage", it.Step())
	}
}
