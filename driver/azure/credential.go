package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/gobeaver/cloudvfs"
)

// StorageScope is the token scope of Azure Storage data plane access.
const StorageScope = "https://storage.azure.com/.default"

// BrowserCredentials obtains delegated credentials by running the
// interactive browser sign-in.
type BrowserCredentials struct {
	// ClientID overrides the application used for sign-in.
	ClientID string

	// RedirectURL overrides the local redirect address.
	RedirectURL string
}

var _ cloudvfs.CredentialProvider = (*BrowserCredentials)(nil)

// ObtainCredential implements cloudvfs.CredentialProvider. It signs in
// once so that later token requests are served silently.
func (b *BrowserCredentials) ObtainCredential(ctx context.Context, tenantID string) (azcore.TokenCredential, error) {
	cred, err := azidentity.NewInteractiveBrowserCredential(&azidentity.InteractiveBrowserCredentialOptions{
		TenantID:    tenantID,
		ClientID:    b.ClientID,
		RedirectURL: b.RedirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create browser credential: %w", err)
	}

	if _, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{StorageScope}}); err != nil {
		if ctx.Err() != nil {
			return nil, cloudvfs.ErrUserAbort
		}
		return nil, fmt.Errorf("sign-in: %w", err)
	}
	return cred, nil
}
