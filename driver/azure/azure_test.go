package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/gobeaver/cloudvfs"
)

const testConnectionString = "DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=dGVzdGtleQ==;EndpointSuffix=core.windows.net"

func TestMapAzureError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"blob not found", &azcore.ResponseError{ErrorCode: "BlobNotFound", StatusCode: 404}, cloudvfs.ErrNotExist},
		{"container not found", &azcore.ResponseError{ErrorCode: "ContainerNotFound", StatusCode: 404}, cloudvfs.ErrNotExist},
		{"bare 404", &azcore.ResponseError{StatusCode: http.StatusNotFound}, cloudvfs.ErrNotExist},
		{"already exists", &azcore.ResponseError{ErrorCode: "BlobAlreadyExists", StatusCode: 409}, cloudvfs.ErrExist},
		{"condition not met", &azcore.ResponseError{ErrorCode: "ConditionNotMet", StatusCode: 412}, cloudvfs.ErrExist},
		{"key auth disabled", &azcore.ResponseError{ErrorCode: "KeyBasedAuthenticationNotPermitted", StatusCode: 403}, cloudvfs.ErrKeyAuthNotPermitted},
		{"permission mismatch", &azcore.ResponseError{ErrorCode: "AuthorizationPermissionMismatch", StatusCode: 403}, cloudvfs.ErrPermission},
		{"bare 403", &azcore.ResponseError{StatusCode: http.StatusForbidden}, cloudvfs.ErrPermission},
		{"canceled", fmt.Errorf("send: %w", context.Canceled), context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapAzureError("op", "path", tt.err)
			if !errors.Is(err, tt.target) {
				t.Errorf("mapAzureError(%v) = %v, want %v", tt.err, err, tt.target)
			}
			var pe *cloudvfs.PathError
			if !errors.As(err, &pe) || pe.Op != "op" || pe.Path != "path" {
				t.Errorf("expected PathError with op and path, got %#v", err)
			}
		})
	}

	t.Run("unknown code keeps store error", func(t *testing.T) {
		err := mapAzureError("op", "path", &azcore.ResponseError{ErrorCode: "ServerBusy", StatusCode: 503})
		var se *cloudvfs.StoreError
		if !errors.As(err, &se) {
			t.Fatalf("expected StoreError, got %v", err)
		}
		if se.Code != "ServerBusy" || se.StatusCode != 503 {
			t.Errorf("unexpected store error: %+v", se)
		}
	})
}

func TestCopyStatus(t *testing.T) {
	tests := []struct {
		name  string
		state *blob.CopyStatusType
		want  cloudvfs.CopyState
	}{
		{"nil is synchronous success", nil, cloudvfs.CopySuccess},
		{"success", to.Ptr(blob.CopyStatusTypeSuccess), cloudvfs.CopySuccess},
		{"pending", to.Ptr(blob.CopyStatusTypePending), cloudvfs.CopyPending},
		{"aborted", to.Ptr(blob.CopyStatusTypeAborted), cloudvfs.CopyAborted},
		{"failed", to.Ptr(blob.CopyStatusTypeFailed), cloudvfs.CopyFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := copyStatus(tt.state, to.Ptr("desc"))
			if got.State != tt.want {
				t.Errorf("got %s, want %s", got.State, tt.want)
			}
			if got.Description != "desc" {
				t.Errorf("description = %q", got.Description)
			}
		})
	}
}

func TestContainerName(t *testing.T) {
	tests := map[string]string{
		"https://acct.blob.core.windows.net/photos?sv=1&sig=x": "photos",
		"https://acct.blob.core.windows.net/photos/":           "photos",
		"https://acct.blob.core.windows.net/":                  "",
	}
	for in, want := range tests {
		if got := containerName(in); got != want {
			t.Errorf("containerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewAccountClient(t *testing.T) {
	f := New()

	t.Run("shared key", func(t *testing.T) {
		c, err := f.NewAccountClient(cloudvfs.ClientSpec{Mode: cloudvfs.AuthSharedKey, ConnectionString: testConnectionString})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Container("photos").Name() != "photos" {
			t.Error("expected container client to keep its name")
		}
	})

	t.Run("sas", func(t *testing.T) {
		_, err := f.NewAccountClient(cloudvfs.ClientSpec{
			Mode:       cloudvfs.AuthSAS,
			ServiceURL: "https://acct.blob.core.windows.net/?sv=2022-11-02&sig=abc",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("delegated without credential", func(t *testing.T) {
		_, err := f.NewAccountClient(cloudvfs.ClientSpec{Mode: cloudvfs.AuthDelegated, ServiceURL: "https://acct.blob.core.windows.net/"})
		if !errors.Is(err, cloudvfs.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired, got %v", err)
		}
	})

	t.Run("malformed connection string", func(t *testing.T) {
		_, err := f.NewAccountClient(cloudvfs.ClientSpec{Mode: cloudvfs.AuthSharedKey, ConnectionString: "garbage"})
		if !errors.Is(err, cloudvfs.ErrInvalidConnection) {
			t.Errorf("expected ErrInvalidConnection, got %v", err)
		}
	})
}

func TestSourceURL(t *testing.T) {
	ctx := context.Background()
	f := New()

	t.Run("shared key signs the source", func(t *testing.T) {
		acct, err := f.NewAccountClient(cloudvfs.ClientSpec{Mode: cloudvfs.AuthSharedKey, ConnectionString: testConnectionString})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		u, err := acct.Container("photos").Blob("a/b.jpg").SourceURL(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(u, "sig=") || !strings.Contains(u, "/photos/a/b.jpg") {
			t.Errorf("expected signed blob URL, got %s", u)
		}
	})

	t.Run("container sas keeps its query", func(t *testing.T) {
		c, err := f.NewContainerClient(cloudvfs.ClientSpec{
			Mode:       cloudvfs.AuthSAS,
			ServiceURL: "https://acct.blob.core.windows.net/photos?sv=2022-11-02&sig=abc",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Name() != "photos" {
			t.Errorf("Name() = %q", c.Name())
		}
		u, err := c.Blob("b.jpg").SourceURL(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(u, "sig=abc") {
			t.Errorf("expected SAS query in %s", u)
		}
	})
}

func TestDriverRegistered(t *testing.T) {
	factory, err := cloudvfs.CreateDriver(&cloudvfs.Config{Driver: "azure"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := factory.(*Factory); !ok {
		t.Errorf("expected *Factory, got %T", factory)
	}
}
