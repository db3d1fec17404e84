package azure

import (
	"github.com/gobeaver/cloudvfs"
)

func init() {
	cloudvfs.RegisterDriver("azure", func(cfg *cloudvfs.Config) (cloudvfs.ClientFactory, error) {
		var options []FactoryOption
		if cfg.UploadConcurrency > 0 {
			options = append(options, WithUploadConcurrency(cfg.UploadConcurrency))
		}
		return New(options...), nil
	})
}
