package extract

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"document-qa/internal/models"
)

type markdownExtractor struct{}

// Markdown is parsed to its AST and flattened to plain text so that
// formatting syntax does not pollute the token stream.
func (markdownExtractor) Extract(path string) (models.Extracted, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return models.Extracted{}, err
	}

	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(src))

	var b strings.Builder
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return models.Extracted{}, err
	}
	return joinPages([]string{b.String()}), nil
}
