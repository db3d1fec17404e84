package cloudvfs

import (
	"testing"
)

func names(entries []FileInfo) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestDirectoryCache_Add(t *testing.T) {
	c := NewDirectoryCache()

	if c.Add(MustParse("/acct/cont")) {
		t.Error("container paths must not be cached")
	}
	if !c.Add(MustParse("/acct/cont/new")) {
		t.Error("expected blob path to be accepted")
	}
	if !c.Contains(MustParse("/acct/cont/new/")) {
		t.Error("directory reference should match the cached path")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d", c.Len())
	}

	if !c.Remove(MustParse("/acct/cont/new")) {
		t.Error("expected Remove to report an eviction")
	}
	if c.Remove(MustParse("/acct/cont/new")) {
		t.Error("second Remove should report nothing")
	}
}

func TestDirectoryCache_Merge(t *testing.T) {
	dir := MustParse("/acct/cont/dir")

	t.Run("empty cached directory yields placeholder", func(t *testing.T) {
		c := NewDirectoryCache()
		c.Add(dir)

		got := c.Merge(dir, nil)
		if len(got) != 1 || !got[0].Placeholder || got[0].Name != PlaceholderName {
			t.Fatalf("expected placeholder, got %+v", got)
		}
		if !got[0].IsDir || !got[0].Provisional {
			t.Error("placeholder should be a provisional directory")
		}
		if !c.Contains(dir) {
			t.Error("empty listing must not evict the directory")
		}
	})

	t.Run("real listing evicts the directory", func(t *testing.T) {
		c := NewDirectoryCache()
		c.Add(dir)

		got := c.Merge(dir, []FileInfo{{Name: "file.txt"}})
		if len(got) != 1 || got[0].Name != "file.txt" {
			t.Fatalf("unexpected entries %+v", got)
		}
		if c.Contains(dir) {
			t.Error("expected directory to be evicted")
		}

		got = c.Merge(dir, nil)
		if len(got) != 0 {
			t.Errorf("expected empty listing after eviction, got %+v", got)
		}
	})

	t.Run("cached children are appended", func(t *testing.T) {
		c := NewDirectoryCache()
		c.Add(dir.Join("zeta"))
		c.Add(dir.Join("alpha"))
		c.Add(dir.Join("alpha").Join("deep"))
		c.Add(MustParse("/acct/cont/elsewhere"))

		got := c.Merge(dir, []FileInfo{{Name: "file.txt"}})
		want := []string{"file.txt", "alpha", "zeta"}
		if gotNames := names(got); len(gotNames) != len(want) {
			t.Fatalf("got %v, want %v", gotNames, want)
		}
		for i, name := range want {
			if got[i].Name != name {
				t.Errorf("entry %d = %q, want %q", i, got[i].Name, name)
			}
		}
		if !got[1].Provisional || !got[1].IsDir || got[1].Path != "/acct/cont/dir/alpha" {
			t.Errorf("unexpected provisional entry %+v", got[1])
		}
	})

	t.Run("does not write into the caller's slice", func(t *testing.T) {
		c := NewDirectoryCache()
		c.Add(dir.Join("alpha"))

		backing := make([]FileInfo, 1, 4)
		backing[0] = FileInfo{Name: "file.txt"}
		got := c.Merge(dir, backing)
		if len(got) != 2 {
			t.Fatalf("expected real and provisional entries, got %+v", got)
		}
		if spare := backing[:2]; spare[1].Name != "" {
			t.Errorf("Merge wrote %q into the caller's backing array", spare[1].Name)
		}
	})

	t.Run("real directories evict cached children", func(t *testing.T) {
		c := NewDirectoryCache()
		c.Add(dir.Join("sub"))

		got := c.Merge(dir, []FileInfo{{Name: "sub", IsDir: true}})
		if len(got) != 1 || got[0].Provisional {
			t.Fatalf("expected only the real entry, got %+v", got)
		}
		if c.Contains(dir.Join("sub")) {
			t.Error("expected cached child to be evicted")
		}
	})
}
