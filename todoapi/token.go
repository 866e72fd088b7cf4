package todoapi

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// MetaCSRFToken is the name of the meta tag the server renders the token into.
const MetaCSRFToken = "csrf-token"

// TokenFromPage returns the content of <meta name="csrf-token"> in an HTML
// document.
func TokenFromPage(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("parse page: %w", err)
			}
			return "", ErrTokenNotFound
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "meta" {
				continue
			}
			var name, content string
			var hasContent bool
			for _, a := range tok.Attr {
				switch strings.ToLower(a.Key) {
				case "name":
					name = a.Val
				case "content":
					content, hasContent = a.Val, true
				}
			}
			if strings.EqualFold(name, MetaCSRFToken) && hasContent {
				return content, nil
			}
		}
	}
}
