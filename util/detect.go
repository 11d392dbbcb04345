package util

import "bytes"

var signatures = []struct {
	format string
	offset int
	magic  []byte
}{
	{"jpeg", 0, []byte{0xFF, 0xD8, 0xFF}},
	{"png", 0, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
	{"gif", 0, []byte("GIF87a")},
	{"gif", 0, []byte("GIF89a")},
	{"webp", 8, []byte("WEBP")},
	{"bmp", 0, []byte("BM")},
	{"tiff", 0, []byte("II*\x00")},
	{"tiff", 0, []byte("MM\x00*")},
}

// DetectFormat 通过文件头识别图片格式，无法识别时返回空字符串
func DetectFormat(header []byte) string {
	for _, s := range signatures {
		end := s.offset + len(s.magic)
		if len(header) < end {
			continue
		}
		if bytes.Equal(header[s.offset:end], s.magic) {
			if s.format == "webp" && !bytes.HasPrefix(header, []byte("RIFF")) {
				continue
			}
			return s.format
		}
	}
	return ""
}
