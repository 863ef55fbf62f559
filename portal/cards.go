package portal

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/Minionjack/Trade-info-scraper/model"
)

// Selectors locate the parts of a post card.
type Selectors struct {
	Card     string
	Title    string
	Body     string
	Image    string
	PostedAt string
}

func DefaultSelectors() Selectors {
	return Selectors{
		Card:     ".post-card",
		Title:    "h4.text-gray-800.fs-3.fw-bold",
		Body:     "div.text-gray-700",
		Image:    "img.card-rounded-bottom",
		PostedAt: "span.fw-bold.text-muted.fs-5.ps-1",
	}
}

type compiled struct {
	card, title, body, image, posted cascadia.Selector
}

func (s Selectors) compile() (compiled, error) {
	var c compiled
	for _, f := range []struct {
		dst *cascadia.Selector
		src string
	}{
		{&c.card, s.Card},
		{&c.title, s.Title},
		{&c.body, s.Body},
		{&c.image, s.Image},
		{&c.posted, s.PostedAt},
	} {
		sel, err := cascadia.Compile(f.src)
		if err != nil {
			return compiled{}, fmt.Errorf("selector %q: %w", f.src, err)
		}
		*f.dst = sel
	}
	return c, nil
}

// parseCards reads every card under doc. Image sources are resolved against
// page. Cards that cannot be read are returned as errors instead of posts.
func (sel compiled) parseCards(doc *html.Node, page *url.URL) ([]model.RawPost, []error) {
	var (
		posts   []model.RawPost
		skipped []error
	)
	for i, card := range sel.card.MatchAll(doc) {
		title := sel.title.MatchFirst(card)
		body := sel.body.MatchFirst(card)
		img := sel.image.MatchFirst(card)
		posted := sel.posted.MatchFirst(card)
		if title == nil || body == nil || img == nil || posted == nil {
			skipped = append(skipped, fmt.Errorf("card %d: missing element", i))
			continue
		}
		posts = append(posts, model.RawPost{
			Title:         strings.TrimSpace(text(title)),
			BodyText:      strings.TrimSpace(text(body)),
			ImageURL:      resolve(page, attr(img, "src")),
			PostedAtLabel: strings.TrimSpace(text(posted)),
		})
	}
	return posts, skipped
}

func csrfToken(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	sel, err := cascadia.Compile(`input[name="_token"]`)
	if err != nil {
		return ""
	}
	if n := sel.MatchFirst(doc); n != nil {
		return attr(n, "value")
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "tr": true, "blockquote": true, "pre": true,
}

// text renders the visible text of n: block elements and <br> start new lines,
// runs of whitespace inside a line collapse to one space, blank lines are dropped.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			case "br":
				b.WriteByte('\n')
				return
			}
		}
		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	walk(n)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
