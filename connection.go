package cloudvfs

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// BlobHostSuffix is the host suffix of public cloud blob endpoints. URL
// classification only applies to hosts ending with it.
const BlobHostSuffix = "blob.core.windows.net"

// StorageConnection describes how to reach one storage account or one
// container. Exactly one of ConnectionString and ServiceURL is set.
type StorageConnection struct {
	ConnectionString   string
	ServiceURL         string
	TenantID           string
	UseActiveDirectory bool

	// Credential is the delegated identity token source. It is never
	// persisted.
	Credential azcore.TokenCredential
}

// ConnectionRecord is the persisted form of a StorageConnection.
type ConnectionRecord struct {
	ConnectionString   string `json:"connectionString,omitempty"`
	ServiceURL         string `json:"serviceUrl,omitempty"`
	TenantID           string `json:"tenantId,omitempty"`
	UseActiveDirectory bool   `json:"useActiveDirectory"`
}

// ParseConnection builds a connection from user input. Values starting
// with https:// are service URLs, anything else is a connection string.
func ParseConnection(raw string) (*StorageConnection, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidConnection
	}
	if strings.HasPrefix(raw, "https://") {
		if _, err := url.Parse(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConnection, err)
		}
		return &StorageConnection{ServiceURL: raw}, nil
	}
	return &StorageConnection{ConnectionString: raw}, nil
}

// FromAccountKey builds a shared key connection for an account.
func FromAccountKey(accountName, accountKey string) *StorageConnection {
	return &StorageConnection{
		ConnectionString: fmt.Sprintf(
			"DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
			accountName, accountKey),
	}
}

// FromRecord restores a connection from its persisted form.
func FromRecord(rec ConnectionRecord) *StorageConnection {
	return &StorageConnection{
		ConnectionString:   rec.ConnectionString,
		ServiceURL:         rec.ServiceURL,
		TenantID:           rec.TenantID,
		UseActiveDirectory: rec.UseActiveDirectory,
	}
}

// Record returns the persisted form of c. The credential is dropped.
func (c *StorageConnection) Record() ConnectionRecord {
	return ConnectionRecord{
		ConnectionString:   c.ConnectionString,
		ServiceURL:         c.ServiceURL,
		TenantID:           c.TenantID,
		UseActiveDirectory: c.UseActiveDirectory,
	}
}

// Clone returns a copy of c sharing the credential.
func (c *StorageConnection) Clone() *StorageConnection {
	cp := *c
	return &cp
}

// parsedURL returns the service URL when it points at a blob endpoint.
func (c *StorageConnection) parsedURL() *url.URL {
	if c.ServiceURL == "" {
		return nil
	}
	u, err := url.Parse(c.ServiceURL)
	if err != nil || !strings.HasSuffix(u.Hostname(), BlobHostSuffix) {
		return nil
	}
	return u
}

func (c *StorageConnection) urlPath() string {
	u := c.parsedURL()
	if u == nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}

func (c *StorageConnection) hasSignature() bool {
	u := c.parsedURL()
	return u != nil && u.Query().Has("sig")
}

// IsStorageSAS reports an account-scoped SAS URL.
func (c *StorageConnection) IsStorageSAS() bool {
	return c.parsedURL() != nil && c.urlPath() == "" && c.hasSignature()
}

// IsContainerSAS reports a container-scoped SAS URL.
func (c *StorageConnection) IsContainerSAS() bool {
	return c.parsedURL() != nil && c.urlPath() != "" && c.hasSignature()
}

// IsContainerDelegated reports a container URL used with delegated identity.
func (c *StorageConnection) IsContainerDelegated() bool {
	return c.parsedURL() != nil && c.urlPath() != "" && c.UseActiveDirectory
}

// IsStorageDelegated reports an account URL used with delegated identity.
func (c *StorageConnection) IsStorageDelegated() bool {
	return c.parsedURL() != nil && c.urlPath() == "" && c.UseActiveDirectory
}

// IsContainerScoped reports whether the connection grants access to a
// single container only.
func (c *StorageConnection) IsContainerScoped() bool {
	return c.IsContainerSAS() || c.IsContainerDelegated()
}

// IsConnectionString reports a shared key connection string.
func (c *StorageConnection) IsConnectionString() bool {
	return strings.Contains(c.ConnectionString, "AccountName=")
}

// RequiresDelegatedAuth reports a URL that carries no signature.
func (c *StorageConnection) RequiresDelegatedAuth() bool {
	return c.ServiceURL != "" && !c.IsContainerSAS() && !c.IsStorageSAS()
}

// ContainerName is the container a container-scoped URL points at.
func (c *StorageConnection) ContainerName() string {
	if !c.IsContainerScoped() {
		return ""
	}
	name, _, _ := strings.Cut(c.urlPath(), "/")
	return name
}

// AccountName is the key the connection is registered under.
func (c *StorageConnection) AccountName() string {
	if c.IsConnectionString() {
		return c.connectionStringParts()["AccountName"]
	}
	u := c.parsedURL()
	if u == nil {
		if c.ServiceURL != "" {
			if raw, err := url.Parse(c.ServiceURL); err == nil {
				return raw.Hostname()
			}
		}
		return ""
	}

	host := u.Hostname()
	account := host
	if i := strings.IndexByte(host, '.'); i > 0 {
		account = host[:i]
	}
	switch {
	case c.IsContainerSAS():
		return account + "." + c.ContainerName() + "(SAS)"
	case c.IsStorageSAS():
		return account + "(SAS)"
	case c.IsContainerDelegated():
		return account + "." + c.ContainerName() + "(Aad)"
	case c.IsStorageDelegated():
		return account + "(Aad)"
	default:
		return host
	}
}

// BaseURL returns the account service URL without container or query.
func (c *StorageConnection) BaseURL() (string, error) {
	if c.IsConnectionString() {
		parts := c.connectionStringParts()
		proto := parts["DefaultEndpointsProtocol"]
		if proto == "" {
			proto = "https"
		}
		suffix := parts["EndpointSuffix"]
		if suffix == "" {
			suffix = "core.windows.net"
		}
		return fmt.Sprintf("%s://%s.blob.%s/", proto, parts["AccountName"], suffix), nil
	}
	if c.ServiceURL == "" {
		return "", ErrInvalidConnection
	}
	u, err := url.Parse(c.ServiceURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConnection, err)
	}
	return u.Scheme + "://" + u.Host + "/", nil
}

// ContainerURL returns the URL of a container under the account. The SAS
// query of a signed URL is preserved.
func (c *StorageConnection) ContainerURL(containerName string) (string, error) {
	if c.IsContainerScoped() {
		return c.ServiceURL, nil
	}
	base, err := c.BaseURL()
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConnection, err)
	}
	u.Path = "/" + containerName
	if c.IsStorageSAS() {
		if src, err := url.Parse(c.ServiceURL); err == nil {
			u.RawQuery = src.RawQuery
		}
	}
	return u.String(), nil
}

func (c *StorageConnection) connectionStringParts() map[string]string {
	parts := make(map[string]string)
	for _, kv := range strings.Split(c.ConnectionString, ";") {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		parts[kv[:i]] = kv[i+1:]
	}
	return parts
}
