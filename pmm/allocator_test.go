package pmm

import "testing"

func TestAllocFirstFit(t *testing.T) {
	a := NewAllocator(4, 8)

	f0, err := a.Alloc()
	if err != nil || f0 != 0 {
		t.Fatalf("expected frame 0, got %v err %v", f0, err)
	}

	f1, err := a.Alloc()
	if err != nil || f1 != 1 {
		t.Fatalf("expected frame 1, got %v err %v", f1, err)
	}

	a.Free(f0)

	f2, err := a.Alloc()
	if err != nil || f2 != 0 {
		t.Fatalf("expected freed frame 0 to be reused first-fit, got %v err %v", f2, err)
	}
}

func TestAllocExhaustion(t *testing.T) {
	a := NewAllocator(2, 8)
	if _, err := a.Alloc(); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Alloc(); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Alloc(); err == nil {
		t.Fatal("expected exhaustion error")
	}
}

func TestFreeZeroesArena(t *testing.T) {
	a := NewAllocator(1, 4)
	f, _ := a.Alloc()
	copy(a.Bytes(f), []byte{1, 2, 3, 4})
	a.Free(f)

	for i, b := range a.Bytes(f) {
		if b != 0 {
			t.Fatalf("byte %d not zeroed after Free: %v", i, b)
		}
	}
}
