package mdadapter

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/watchzerg/magnet-picker-sub000/internal/common"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
	"github.com/watchzerg/magnet-picker-sub000/internal/util"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

const (
	magnetScheme  = "magnet:"
	maxCandidates = 1000
)

var (
	sizeRegexp = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*([kmgtp]i?b|bytes?)\b`)
	dateRegexp = regexp.MustCompile(`\b\d{4}[-/.]\d{2}[-/.]\d{2}\b`)
)

// Frontmatter is the metadata block at the top of a saved page.
type Frontmatter struct {
	Title     string `yaml:"title"`
	URL       string `yaml:"url"`
	ShareDate string `yaml:"share_date"`
}

type pageAdapter struct {
	md  goldmark.Markdown
	log *slog.Logger
}

func NewPageAdapter(log *slog.Logger) *pageAdapter {
	md := goldmark.New(
		goldmark.WithExtensions(
			&frontmatter.Extender{},
			extension.GFM,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &pageAdapter{
		md:  md,
		log: log.With(slog.String("item", "PageAdapter")),
	}
}

// ToPage extracts every magnet link of a Markdown page as a candidate.
//
// The candidate name is the dn parameter of the link, or the link text. The size is the xl
// parameter, or the first size ("4.2 GB", "700 MiB") written after the link on the same line.
// A date written after the link wins over the share_date of the frontmatter.
func (a *pageAdapter) ToPage(source []byte, sourcePath string) (*entity.Page, error) {
	ctx := parser.NewContext()
	doc := a.md.Parser().Parse(text.NewReader(source), parser.WithContext(ctx))

	var fm Frontmatter
	if data := frontmatter.Get(ctx); data != nil {
		if err := data.Decode(&fm); err != nil {
			return nil, fmt.Errorf("cannot decode frontmatter of %s: %w", sourcePath, err)
		}
	}

	page := &entity.Page{
		ID:         util.GetIDFromString(&sourcePath),
		Title:      fm.Title,
		URL:        fm.URL,
		ShareDate:  fm.ShareDate,
		SourcePath: sourcePath,
	}

	seen := make(map[string]struct{})
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		var link, label string
		switch node := n.(type) {
		case *ast.Link:
			link = string(node.Destination)
			label = nodeText(node, source)
		case *ast.AutoLink:
			link = string(node.URL(source))
		default:
			return ast.WalkContinue, nil
		}

		if !strings.HasPrefix(strings.ToLower(link), magnetScheme) {
			return ast.WalkSkipChildren, nil
		}

		c := a.toCandidate(link, label, trailingText(n, source), page)
		if _, ok := seen[c.ID]; ok {
			a.log.Debug("Skip duplicate magnet", slog.String("page", sourcePath), slog.String("id", c.ID))

			return ast.WalkSkipChildren, nil
		}
		seen[c.ID] = struct{}{}
		page.Candidates = append(page.Candidates, c)

		if len(page.Candidates) >= maxCandidates {
			return ast.WalkStop, nil
		}

		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk page %s: %w", sourcePath, err)
	}

	if len(page.Candidates) == 0 {
		return nil, fmt.Errorf("%s: %w", sourcePath, common.ErrPageHasNoCandidatesError)
	}

	return page, nil
}

func (a *pageAdapter) toCandidate(link, label, trailing string, page *entity.Page) *entity.Candidate {
	c := &entity.Candidate{
		ID:   util.GetMagnetID(link),
		Name: util.MagnetParam(link, "dn"),
		Date: page.ShareDate,
		Link: link,
		Page: page.SourcePath,
	}

	if c.Name == "" {
		c.Name = strings.TrimSpace(label)
	}

	if xl, err := strconv.ParseInt(util.MagnetParam(link, "xl"), 10, 64); err == nil && xl >= 0 {
		c.Size = xl
	} else if m := sizeRegexp.FindStringSubmatch(trailing); m != nil {
		num, unit := strings.ReplaceAll(m[1], ",", "."), m[2]
		if strings.HasPrefix(strings.ToLower(unit), "byte") {
			unit = "B"
		}
		size, err := humanize.ParseBytes(num + " " + unit)
		if err != nil {
			a.log.Warn("Cannot parse size", slog.String("page", page.SourcePath), slog.String("size", m[0]), slog.Any("error", err))
		} else {
			c.Size = int64(size)
		}
	}

	if d := dateRegexp.FindString(trailing); d != "" {
		c.Date = d
	}

	return c
}

// nodeText concatenates the text segments below n.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
		case *ast.String:
			buf.Write(t.Value)
		}

		return ast.WalkContinue, nil
	})

	return buf.String()
}

// trailingText returns the text that follows n up to the next link or line break.
func trailingText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for s := n.NextSibling(); s != nil; s = s.NextSibling() {
		switch t := s.(type) {
		case *ast.Link, *ast.AutoLink:
			return buf.String()
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				return buf.String()
			}
		default:
			buf.WriteString(nodeText(s, source))
		}
	}

	return buf.String()
}
