package ringbuf

import (
	"testing"

	"candledash/internal/model"
)

func TestPushAndEviction(t *testing.T) {
	r := New[int](3)
	for _, v := range []int{1, 2, 3} {
		if r.Push(v) {
			t.Fatalf("push %d should not evict yet", v)
		}
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	if !r.Push(4) {
		t.Fatal("push past capacity should evict")
	}
	if r.Len() != 3 {
		t.Fatalf("len after evict = %d, want 3", r.Len())
	}
	if r.Overflow() != 1 {
		t.Fatalf("overflow = %d, want 1", r.Overflow())
	}
	got := r.Slice()
	want := []int{2, 3, 4}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("slice[%d] = %d, want %d", i, got[i], v)
		}
	}
}

func TestReplaceLast(t *testing.T) {
	r := New[int](3)
	r.Push(1)
	r.Push(2)
	r.ReplaceLast(20)
	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}
	back, _ := r.Back()
	if back != 20 {
		t.Fatalf("back = %d, want 20", back)
	}
	front, _ := r.Front()
	if front != 1 {
		t.Fatalf("front = %d, want 1", front)
	}
}

func TestFrontBackEmpty(t *testing.T) {
	r := New[int](2)
	if _, ok := r.Front(); ok {
		t.Fatal("Front on empty should not be ok")
	}
	if _, ok := r.Back(); ok {
		t.Fatal("Back on empty should not be ok")
	}
}

func TestIterWithoutLast(t *testing.T) {
	r := New[int](4)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	var got []int
	r.IterWithoutLast(func(v int) bool {
		got = append(got, v)
		return true
	})
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("IterWithoutLast = %v, want [1 2]", got)
	}

	r2 := New[int](4)
	r2.Push(1)
	var none []int
	r2.IterWithoutLast(func(v int) bool {
		none = append(none, v)
		return true
	})
	if len(none) != 0 {
		t.Fatalf("IterWithoutLast on length-1 buffer should be empty, got %v", none)
	}
}

func TestClear(t *testing.T) {
	r := New[int](3)
	r.Push(1)
	r.Push(2)
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("len after clear = %d, want 0", r.Len())
	}
	if _, ok := r.Front(); ok {
		t.Fatal("Front after clear should not be ok")
	}
}

func TestRetainByOpenTime(t *testing.T) {
	r := New[model.Bar](5)
	for i := int64(0); i < 5; i++ {
		r.Push(model.Bar{OpenTime: i * 60_000})
	}
	RetainByOpenTime(r, func(openTime int64) bool { return openTime >= 2*60_000 })
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	front, _ := r.Front()
	if front.OpenTime != 2*60_000 {
		t.Fatalf("front.OpenTime = %d, want %d", front.OpenTime, 2*60_000)
	}
}

func TestCapacityClampedToOne(t *testing.T) {
	r := New[int](0)
	if r.Cap() != 1 {
		t.Fatalf("Cap() = %d, want 1", r.Cap())
	}
}
