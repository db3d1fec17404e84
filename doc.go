// Package cloudvfs presents Azure Blob Storage as a hierarchical virtual file
// system.
//
// Virtual paths have the form /<connection>/<container>/<blob...>. The root
// lists the registered connections plus the reserved "Connect to Azure"
// entry, the first level lists the containers of a connection, and deeper
// levels list the blob hierarchy split on "/".
//
// The package follows interface segregation: [Navigator] covers listing and
// metadata, [Transferer] moves content, and [Organizer] manages entries. A
// [Session] implements the combined [FileSystem].
//
// # Drivers
//
// Store access goes through a [ClientFactory]. Drivers register themselves
// by name when imported:
//
//   - Azure Blob Storage (github.com/gobeaver/cloudvfs/driver/azure)
//   - In-memory (github.com/gobeaver/cloudvfs/driver/memory)
//
// # Basic Usage
//
//	import _ "github.com/gobeaver/cloudvfs/driver/azure"
//
//	s, err := cloudvfs.NewFromConfig(ctx, &cloudvfs.Config{
//	    Driver:          "azure",
//	    ConnectionsFile: "connections.age",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Register a connection
//	name, err := s.Registry().AddConnection(ctx, connectionString)
//
//	// Browse
//	containers, err := s.List(ctx, "/"+name)
//	csvs, err := s.ListMatching(ctx, "/"+name+"/reports", "*.csv")
//
//	// Transfer with progress
//	err = s.Download(ctx, "/"+name+"/reports/q1.csv", "q1.csv",
//	    cloudvfs.WithProgress(func(p int) { fmt.Printf("\r%3d%%", p) }))
//
// # Connections
//
// A connection is a connection string, an account or container SAS URL, or
// an unsigned URL that requires delegated Azure AD sign-in. The [Registry]
// keeps connections in insertion order and persists them through a
// [ConnectionStore]. When an account rejects shared key authorization the
// listing switches the connection to delegated sign-in and retries once.
//
// # Directories
//
// Blob storage has no real directories. Directories created with
// [Session.MakeDirectory] live in a [DirectoryCache] and are merged into
// listings until a blob is written below them. An emptied directory stays
// visible through a ".." placeholder entry.
//
// # Configuration
//
// Configuration is loaded from environment variables with the BEAVER_ prefix:
//
//	BEAVER_CLOUDVFS_DRIVER=azure
//	BEAVER_CLOUDVFS_CONNECTIONS_FILE=~/.cloudvfs/connections.age
//	BEAVER_CLOUDVFS_IDENTITY_FILE=~/.cloudvfs/identity.key
//	BEAVER_CLOUDVFS_CHUNK_SIZE=32768
//	BEAVER_CLOUDVFS_COPY_POLL_INTERVAL_MS=100
//	BEAVER_CLOUDVFS_UPLOAD_CONCURRENCY=1
//	BEAVER_CLOUDVFS_TENANT_ID=...
//	BEAVER_CLOUDVFS_LOG_LEVEL=info
//
// Use [WithPrefix] for a custom prefix.
//
// # Errors
//
// Operations return [PathError] values wrapping sentinel errors such as
// [ErrNotExist] and [ErrExist]. [ResultCodeOf] maps any operation error onto
// the coarse [ResultCode] reported to a host.
package cloudvfs
