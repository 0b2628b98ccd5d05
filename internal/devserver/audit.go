package devserver

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/tabi-dev/tabi/internal/synth"
)

// auditDocument checks rendered output for the two elements hydration
// depends on: the embedded page-data script and the mount anchor. Only
// relevant when the site overrides the document template, since the
// default one always carries both. Runs once per manifest generation so
// a broken template warns once, not per request.
func (s *Server) auditDocument(ctx context.Context, renderedHTML string) {
	m := s.holder.Current()
	if m.System.Document == "" {
		return
	}

	generation := m.Generation
	if s.audited.Swap(generation) == generation {
		return
	}

	doc, err := html.Parse(strings.NewReader(renderedHTML))
	if err != nil {
		s.logger.Warn(ctx, err, "document audit skipped, output did not parse")

		return
	}

	var hasData, hasMount bool
	walkNodes(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		for _, attr := range n.Attr {
			if attr.Key != "id" {
				continue
			}
			switch attr.Val {
			case synth.DataElementID:
				hasData = true
			case synth.MountElementID:
				hasMount = true
			}
		}
	})

	if !hasData {
		s.logger.Warn(ctx, nil, "document template dropped the page-data element, hydration will fail",
			"id", synth.DataElementID,
			"document", m.System.Document,
		)
	}
	if !hasMount {
		s.logger.Warn(ctx, nil, "document template dropped the mount anchor, hydration will fail",
			"id", synth.MountElementID,
			"document", m.System.Document,
		)
	}
}

func walkNodes(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, visit)
	}
}
