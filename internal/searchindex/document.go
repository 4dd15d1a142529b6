// Package searchindex implements the full-text index engine and its
// lifecycle manager from spec.md §4.C8/C9, built on bleve.
package searchindex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anyfind/anyfind/internal/tokenize"
)

// Document is one indexed file path, matching spec.md §3's index
// document field list exactly.
type Document struct {
	FileName      string `json:"file_name"`
	FullPath      string `json:"full_path"`
	FileType      string `json:"file_type"`
	FileExt       string `json:"file_ext"`
	ModifyTime    int64  `json:"modify_time"`
	FileSize      int64  `json:"file_size"`
	ModifyTimeStr string `json:"modify_time_str"`
	FileSizeStr   string `json:"file_size_str"`
	Pinyin        string `json:"pinyin"`
	IsHidden      string `json:"is_hidden"`
}

// BucketMap resolves a lowercased extension (without dot) to one of
// the configured file-type buckets from spec.md §6
// (`<bucket>_file_suffix`).
type BucketMap map[string]string

// Classify returns the configured bucket for ext, or "other" if ext
// isn't in any configured bucket's suffix list.
func (b BucketMap) Classify(ext string) string {
	if bucket, ok := b[ext]; ok {
		return bucket
	}
	return "other"
}

// ParseBucketSuffixes builds a BucketMap from the raw
// `<bucket>_file_suffix` config values, each a semicolon-separated
// list of extensions, per spec.md §6.
func ParseBucketSuffixes(suffixes map[string]string) BucketMap {
	buckets := make(BucketMap)
	for bucket, list := range suffixes {
		for _, ext := range strings.Split(list, ";") {
			ext = strings.ToLower(strings.TrimSpace(ext))
			ext = strings.TrimPrefix(ext, ".")
			if ext != "" {
				buckets[ext] = bucket
			}
		}
	}
	return buckets
}

// BuildDocument constructs the index document for path, per spec.md §3.
func BuildDocument(path string, info os.FileInfo, buckets BucketMap) Document {
	base := filepath.Base(path)
	lowerBase := strings.ToLower(base)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")

	fileType := "other"
	switch {
	case info.IsDir():
		fileType = "dir"
	case ext != "":
		fileType = buckets.Classify(ext)
	}

	exp := tokenize.Expand(lowerBase)
	// All four pinyin variants are folded into one field so a query
	// can match on the spaced reading, the acronym, or the
	// concatenation without the caller needing to know which.
	pinyin := strings.TrimSpace(strings.Join([]string{
		exp.Spaced, exp.Acronym, exp.Concatenated, exp.MixedAcronym,
	}, " "))

	return Document{
		FileName:      lowerBase,
		FullPath:      path,
		FileType:      fileType,
		FileExt:       ext,
		ModifyTime:    info.ModTime().Unix(),
		FileSize:      info.Size(),
		ModifyTimeStr: info.ModTime().Format("2006-01-02 15:04:05"),
		FileSizeStr:   formatSize(info.Size()),
		Pinyin:        pinyin,
		IsHidden:      hiddenFlag(path),
	}
}

// hiddenFlag implements spec.md §3's is_hidden rule: "Y" if any path
// component begins with ".".
func hiddenFlag(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part != "" && strings.HasPrefix(part, ".") {
			return "Y"
		}
	}
	return "N"
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// documentFromFields reconstructs a Document from a bleve search hit's
// stored fields map (numeric fields come back as float64).
func documentFromFields(id string, f map[string]interface{}) Document {
	doc := Document{FullPath: id}
	if v, ok := f["file_name"].(string); ok {
		doc.FileName = v
	}
	if v, ok := f["file_type"].(string); ok {
		doc.FileType = v
	}
	if v, ok := f["file_ext"].(string); ok {
		doc.FileExt = v
	}
	if v, ok := f["modify_time"].(float64); ok {
		doc.ModifyTime = int64(v)
	}
	if v, ok := f["file_size"].(float64); ok {
		doc.FileSize = int64(v)
	}
	if v, ok := f["modify_time_str"].(string); ok {
		doc.ModifyTimeStr = v
	}
	if v, ok := f["file_size_str"].(string); ok {
		doc.FileSizeStr = v
	}
	if v, ok := f["pinyin"].(string); ok {
		doc.Pinyin = v
	}
	if v, ok := f["is_hidden"].(string); ok {
		doc.IsHidden = v
	}
	return doc
}
