package cloudvfs

import (
	"mime"
	"path"
	"strings"
)

// DefaultContentType is used when nothing is known about a file.
const DefaultContentType = "application/octet-stream"

// Extensions the platform mime tables often miss or disagree on.
var extensionToMIME = map[string]string{
	".txt":     "text/plain",
	".log":     "text/plain",
	".csv":     "text/csv",
	".md":      "text/markdown",
	".json":    "application/json",
	".xml":     "application/xml",
	".yaml":    "application/yaml",
	".yml":     "application/yaml",
	".parquet": "application/vnd.apache.parquet",
	".avro":    "application/avro",
	".gz":      "application/gzip",
	".tar":     "application/x-tar",
	".zip":     "application/zip",
	".7z":      "application/x-7z-compressed",
	".pdf":     "application/pdf",
	".png":     "image/png",
	".jpg":     "image/jpeg",
	".jpeg":    "image/jpeg",
	".svg":     "image/svg+xml",
	".webp":    "image/webp",
	".mp4":     "video/mp4",
	".vhd":     "application/octet-stream",
	".docx":    "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx":    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ContentTypeOf returns the content type stored with a blob uploaded from
// a file called name.
func ContentTypeOf(name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, `\`, Separator)))
	if ext == "" {
		return DefaultContentType
	}
	if contentType, ok := extensionToMIME[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return DefaultContentType
}
