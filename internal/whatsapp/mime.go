package whatsapp

import (
	"path/filepath"
	"strings"
)

var documentMimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"zip":  "application/zip",
	"rar":  "application/x-rar-compressed",
	"txt":  "text/plain",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"mp4":  "video/mp4",
	"mp3":  "audio/mpeg",
}

// MimeTypeByName resolves a document MIME type from the file name
// extension. Unknown extensions default to a generic octet stream.
func MimeTypeByName(fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if mt, ok := documentMimeTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
