package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	gohtml "golang.org/x/net/html"

	"github.com/liuxd6825/marionette/api"
)

// Locator strategies.
const (
	ByID              = "id"
	ByName            = "name"
	ByClassName       = "class name"
	ByTagName         = "tag name"
	ByCSSSelector     = "css selector"
	ByLinkText        = "link text"
	ByPartialLinkText = "partial link text"
)

// find selects the descendants of scope located with the given strategy.
func find(scope *goquery.Selection, using, value string) (*goquery.Selection, error) {
	switch using {
	case ByID:
		return scope.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("id", "") == value
		}), nil
	case ByName:
		return scope.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("name", "") == value
		}), nil
	case ByClassName:
		if strings.ContainsAny(value, " \t\n") {
			return nil, api.NewError(api.InvalidSelector, "Compound class names are not permitted: %q", value)
		}
		return scope.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
			for _, c := range strings.Fields(s.AttrOr("class", "")) {
				if c == value {
					return true
				}
			}
			return false
		}), nil
	case ByTagName:
		return scope.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.EqualFold(goquery.NodeName(s), value)
		}), nil
	case ByCSSSelector:
		m, err := cascadia.Compile(value)
		if err != nil {
			return nil, api.NewError(api.InvalidSelector, "invalid selector %q: %v", value, err)
		}
		return scope.FindMatcher(m), nil
	case ByLinkText, ByPartialLinkText:
		partial := using == ByPartialLinkText
		return scope.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if partial {
				return strings.Contains(text, value)
			}
			return text == value
		}), nil
	}
	return nil, api.NewError(api.InvalidSelector, "unsupported locator strategy %q", using)
}

func getHTMLAttr(node *gohtml.Node, name string) *gohtml.Attribute {
	for i := range node.Attr {
		if node.Attr[i].Key == name {
			return &node.Attr[i]
		}
	}
	return nil
}

func setHTMLAttr(node *gohtml.Node, name, value string) {
	if a := getHTMLAttr(node, name); a != nil {
		a.Val = value
		return
	}
	node.Attr = append(node.Attr, gohtml.Attribute{Key: name, Val: value})
}

func removeHTMLAttr(node *gohtml.Node, name string) {
	for i := range node.Attr {
		if node.Attr[i].Key == name {
			node.Attr = append(node.Attr[:i], node.Attr[i+1:]...)
			return
		}
	}
}
