package memory

import "github.com/gobeaver/cloudvfs"

func init() {
	cloudvfs.RegisterDriver("memory", func(cfg *cloudvfs.Config) (cloudvfs.ClientFactory, error) {
		return New(), nil
	})
}
