package dom

import (
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// prescan is how much of a body charset detection looks at.
const prescan = 1024

// DecodeUTF8 converts an HTML body to UTF-8.
// The encoding comes from the Content-Type header, a byte order mark or the
// document's meta tags, in that order, defaulting to windows-1252 as browsers
// do. It returns the decoded body and the encoding name. A body that fails to
// decode is returned unchanged.
func DecodeUTF8(body []byte, contentType string) ([]byte, string) {
	head := body
	if len(head) > prescan {
		head = head[:prescan]
	}

	enc, name, _ := charset.DetermineEncoding(head, contentType)
	if name == "utf-8" {
		return body, name
	}

	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return body, name
	}
	return decoded, name
}
