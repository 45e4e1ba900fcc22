package netsocket

import (
	"sync"
	"testing"
)

func TestTagStoreBasic(t *testing.T) {
	ts := newTagStore()

	if _, ok := ts.Get("missing"); ok {
		t.Error("missing key reported present")
	}

	ts.Set("user", "alice")
	ts.Set("attempts", 3)

	if v, ok := ts.Get("user"); !ok || v != "alice" {
		t.Errorf("Get(user) = %v, %v", v, ok)
	}
	if ts.Len() != 2 {
		t.Errorf("Len = %d, want 2", ts.Len())
	}

	ts.Set("user", "bob")
	if v, _ := ts.Get("user"); v != "bob" {
		t.Errorf("overwrite lost: %v", v)
	}

	ts.Delete("user")
	if _, ok := ts.Get("user"); ok {
		t.Error("deleted key still present")
	}

	ts.Clear()
	if ts.Len() != 0 {
		t.Errorf("Len after Clear = %d", ts.Len())
	}
}

func TestTagStoreConcurrent(t *testing.T) {
	ts := newTagStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ts.Set("shared", id)
				ts.Get("shared")
				ts.Len()
			}
		}(i)
	}
	wg.Wait()

	if _, ok := ts.Get("shared"); !ok {
		t.Error("shared key lost")
	}
}
