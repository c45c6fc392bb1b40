package llm

import (
	"encoding/base64"
)

// DataURL encodes an image as a data: URL for chat-style APIs.
func DataURL(img Image) string {
	mt := img.MediaType
	if mt == "" {
		mt = "image/jpeg"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
