package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/gobeaver/cloudvfs"
)

func sharedKeySpec(account string) cloudvfs.ClientSpec {
	return cloudvfs.ClientSpec{Mode: cloudvfs.AuthSharedKey, Account: account}
}

func TestStore_ListContainers(t *testing.T) {
	ctx := context.Background()

	t.Run("lists sorted containers", func(t *testing.T) {
		s := New()
		s.CreateContainer("acct", "zeta")
		s.CreateContainer("acct", "alpha")
		s.CreateContainer("other", "skip")

		acct, err := s.NewAccountClient(sharedKeySpec("acct"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		items, err := acct.ListContainers(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 2 || items[0].Name != "alpha" || items[1].Name != "zeta" {
			t.Errorf("unexpected containers: %+v", items)
		}
		if s.ListContainersCalls() != 1 {
			t.Errorf("expected 1 call, got %d", s.ListContainersCalls())
		}
	})

	t.Run("blocked shared key", func(t *testing.T) {
		s := New()
		s.CreateContainer("acct", "c")
		s.BlockSharedKey("acct")

		acct, _ := s.NewAccountClient(sharedKeySpec("acct"))
		_, err := acct.ListContainers(ctx)
		if !errors.Is(err, cloudvfs.ErrKeyAuthNotPermitted) {
			t.Fatalf("expected ErrKeyAuthNotPermitted, got %v", err)
		}

		delegated, _ := s.NewAccountClient(cloudvfs.ClientSpec{Mode: cloudvfs.AuthDelegated, Account: "acct"})
		items, err := delegated.ListContainers(ctx)
		if err != nil || len(items) != 1 {
			t.Errorf("delegated listing: items=%v err=%v", items, err)
		}
	})

	t.Run("requires account", func(t *testing.T) {
		_, err := New().NewAccountClient(cloudvfs.ClientSpec{})
		if !errors.Is(err, cloudvfs.ErrInvalidConnection) {
			t.Errorf("expected ErrInvalidConnection, got %v", err)
		}
	})
}

func TestStore_ListHierarchy(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutBlob("acct", "c", "root.txt", []byte("r"))
	s.PutBlob("acct", "c", "dir/a.txt", []byte("a"))
	s.PutBlob("acct", "c", "dir/b.txt", []byte("bb"))
	s.PutBlob("acct", "c", "dir/sub/c.txt", []byte("c"))

	acct, _ := s.NewAccountClient(sharedKeySpec("acct"))
	c := acct.Container("c")

	tests := []struct {
		prefix string
		want   []string
	}{
		{"", []string{"dir/", "root.txt"}},
		{"dir/", []string{"dir/a.txt", "dir/b.txt", "dir/sub/"}},
		{"dir/sub/", []string{"dir/sub/c.txt"}},
		{"missing/", nil},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			items, err := c.ListHierarchy(ctx, tt.prefix, "/")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var got []string
			for _, item := range items {
				got = append(got, item.Name)
				if item.IsPrefix != strings.HasSuffix(item.Name, "/") {
					t.Errorf("item %q IsPrefix=%v", item.Name, item.IsPrefix)
				}
				if !item.IsPrefix && item.Properties == nil {
					t.Errorf("blob item %q has no properties", item.Name)
				}
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("missing container", func(t *testing.T) {
		_, err := acct.Container("nope").ListHierarchy(ctx, "", "/")
		if !errors.Is(err, cloudvfs.ErrNotExist) {
			t.Errorf("expected ErrNotExist, got %v", err)
		}
	})
}

func TestStore_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("writes content", func(t *testing.T) {
		s := New()
		s.CreateContainer("acct", "c")
		acct, _ := s.NewAccountClient(sharedKeySpec("acct"))
		b := acct.Container("c").Blob("f.txt")

		err := b.Upload(ctx, strings.NewReader("hello"), 5, cloudvfs.UploadOptions{ContentType: "text/plain"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, ok := s.BlobContent("acct", "c", "f.txt")
		if !ok || string(data) != "hello" {
			t.Errorf("content = %q, %v", data, ok)
		}
		props, err := b.Properties(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if props.ContentType != "text/plain" || props.Size != 5 {
			t.Errorf("unexpected properties: %+v", props)
		}
		if s.BytesWritten() != 5 {
			t.Errorf("BytesWritten = %d", s.BytesWritten())
		}
	})

	t.Run("if-none-match rejects before reading", func(t *testing.T) {
		s := New()
		s.PutBlob("acct", "c", "f.txt", []byte("old"))
		acct, _ := s.NewAccountClient(sharedKeySpec("acct"))

		r := strings.NewReader("new content")
		err := acct.Container("c").Blob("f.txt").Upload(ctx, r, int64(r.Len()), cloudvfs.UploadOptions{IfNoneMatch: true})
		if !errors.Is(err, cloudvfs.ErrExist) {
			t.Fatalf("expected ErrExist, got %v", err)
		}
		if r.Len() != len("new content") {
			t.Error("expected body to be left unread")
		}
		if s.BytesWritten() != 0 {
			t.Errorf("BytesWritten = %d", s.BytesWritten())
		}
		data, _ := s.BlobContent("acct", "c", "f.txt")
		if string(data) != "old" {
			t.Errorf("content changed to %q", data)
		}
	})

	t.Run("injected failure", func(t *testing.T) {
		s := New()
		s.CreateContainer("acct", "c")
		s.FailOn(OpUpload, cloudvfs.ErrPermission)
		acct, _ := s.NewAccountClient(sharedKeySpec("acct"))

		err := acct.Container("c").Blob("f").Upload(ctx, strings.NewReader("x"), 1, cloudvfs.UploadOptions{})
		if !errors.Is(err, cloudvfs.ErrPermission) {
			t.Errorf("expected ErrPermission, got %v", err)
		}
		if s.UploadCalls() != 1 {
			t.Errorf("UploadCalls = %d", s.UploadCalls())
		}
	})
}

func TestStore_DownloadAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutBlob("acct", "c", "f.bin", []byte("payload"))
	acct, _ := s.NewAccountClient(sharedKeySpec("acct"))
	b := acct.Container("c").Blob("f.bin")

	body, size, err := b.Download(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != "payload" || size != 7 {
		t.Errorf("download = %q (%d)", data, size)
	}

	deleted, err := b.Delete(ctx)
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = b.Delete(ctx)
	if err != nil || deleted {
		t.Errorf("second delete: deleted=%v err=%v", deleted, err)
	}

	if _, _, err := b.Download(ctx); !errors.Is(err, cloudvfs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestStore_Copy(t *testing.T) {
	ctx := context.Background()

	setup := func() (*Store, cloudvfs.BlobClient, cloudvfs.BlobClient) {
		s := New()
		s.PutBlob("acct", "c", "src.txt", []byte("data"))
		acct, _ := s.NewAccountClient(sharedKeySpec("acct"))
		c := acct.Container("c")
		return s, c.Blob("src.txt"), c.Blob("dst.txt")
	}

	t.Run("completes immediately", func(t *testing.T) {
		s, src, dst := setup()
		u, _ := src.SourceURL(ctx)
		status, err := dst.StartCopy(ctx, u)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.State != cloudvfs.CopySuccess {
			t.Errorf("state = %s", status.State)
		}
		if data, ok := s.BlobContent("acct", "c", "dst.txt"); !ok || string(data) != "data" {
			t.Errorf("destination = %q, %v", data, ok)
		}
	})

	t.Run("pending for configured polls", func(t *testing.T) {
		s, src, dst := setup()
		s.SetCopyPolls(3)
		u, _ := src.SourceURL(ctx)
		status, _ := dst.StartCopy(ctx, u)
		if status.State != cloudvfs.CopyPending {
			t.Fatalf("state = %s", status.State)
		}
		for i := 0; i < 2; i++ {
			st, _ := dst.CopyStatus(ctx)
			if st.State != cloudvfs.CopyPending {
				t.Fatalf("poll %d: state = %s", i, st.State)
			}
		}
		st, _ := dst.CopyStatus(ctx)
		if st.State != cloudvfs.CopySuccess {
			t.Errorf("final state = %s", st.State)
		}
		if s.CopyStatusCalls() != 3 {
			t.Errorf("CopyStatusCalls = %d", s.CopyStatusCalls())
		}
		if ok, _ := dst.Exists(ctx); !ok {
			t.Error("expected destination to exist")
		}
	})

	t.Run("dropped copy", func(t *testing.T) {
		s, src, dst := setup()
		s.DropCopies(true)
		u, _ := src.SourceURL(ctx)
		status, _ := dst.StartCopy(ctx, u)
		if status.State != cloudvfs.CopySuccess {
			t.Errorf("state = %s", status.State)
		}
		if ok, _ := dst.Exists(ctx); ok {
			t.Error("expected destination to be missing")
		}
	})

	t.Run("missing source", func(t *testing.T) {
		_, _, dst := setup()
		_, err := dst.StartCopy(ctx, "memory://acct/c/nope")
		if !errors.Is(err, cloudvfs.ErrNotExist) {
			t.Errorf("expected ErrNotExist, got %v", err)
		}
	})
}

func TestStore_ContainerClientFromURL(t *testing.T) {
	s := New()
	s.PutBlob("acct", "photos", "a.jpg", []byte("x"))

	c, err := s.NewContainerClient(cloudvfs.ClientSpec{
		Mode:       cloudvfs.AuthSAS,
		Account:    "acct",
		ServiceURL: "https://acct.blob.core.windows.net/photos?sv=1&sig=abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name() != "photos" {
		t.Errorf("Name() = %q", c.Name())
	}
	if ok, _ := c.Blob("a.jpg").Exists(context.Background()); !ok {
		t.Error("expected blob to exist")
	}

	_, err = s.NewContainerClient(cloudvfs.ClientSpec{Account: "acct", ServiceURL: "https://acct.blob.core.windows.net/"})
	if !errors.Is(err, cloudvfs.ErrInvalidConnection) {
		t.Errorf("expected ErrInvalidConnection, got %v", err)
	}
}

func TestDriverRegistered(t *testing.T) {
	factory, err := cloudvfs.CreateDriver(&cloudvfs.Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := factory.(*Store); !ok {
		t.Errorf("expected *Store, got %T", factory)
	}
}
