package viewer

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPagerRunsLoadsOnWorkers(t *testing.T) {
	pager, err := NewDatabasePager("", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer pager.Shutdown()

	device := newFakeDevice("gpu0")
	ctx := &CompileContext{Device: device}
	pager.CompileTraversal = &CompileTraversal{Context: ctx}
	if err := pager.Start(); err != nil {
		t.Fatal(err)
	}

	loaded := make(chan *CompileContext, 1)
	pager.RequestLoad("scene/terrain.bin", func(ctx *CompileContext) error {
		loaded <- ctx
		return nil
	})

	select {
	case got := <-loaded:
		if got != ctx {
			t.Fatal("load ran with the wrong compile context")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("load never reached a worker")
	}
}

func TestPagerStartRequiresCompileTraversal(t *testing.T) {
	pager, err := NewDatabasePager("", 1)
	if err != nil {
		t.Fatal(err)
	}
	defer pager.Shutdown()

	if err := pager.Start(); err == nil {
		t.Fatal("Start must fail without a compile traversal")
	}
}

func TestPagerReloadsChangedFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "terrain.bin")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	pager, err := NewDatabasePager(root, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer pager.Shutdown()

	device := newFakeDevice("gpu0")
	pager.CompileTraversal = &CompileTraversal{Context: &CompileContext{Device: device}}
	if err := pager.Start(); err != nil {
		t.Fatal(err)
	}

	loads := make(chan struct{}, 8)
	pager.RequestLoad(path, func(ctx *CompileContext) error {
		loads <- struct{}{}
		return nil
	})

	// First load, from the explicit request.
	select {
	case <-loads:
	case <-time.After(5 * time.Second):
		t.Fatal("initial load never ran")
	}

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Second load, triggered by the file change.
	select {
	case <-loads:
	case <-time.After(5 * time.Second):
		t.Fatal("file change did not trigger a reload")
	}
}
