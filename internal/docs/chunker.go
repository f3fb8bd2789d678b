package docs

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	// DefaultMaxChunkLen is the default maximum chunk body length in characters.
	DefaultMaxChunkLen = 3000

	// MaxHeadingLevel is the deepest heading level that structures a document.
	// Deeper headings are treated as body text.
	MaxHeadingLevel = 3
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Chunker splits markdown documents into bounded, heading-aligned chunks.
// A Chunker is immutable and safe for concurrent use.
type Chunker struct {
	maxLen int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithMaxChunkLen sets the maximum chunk body length in characters.
// Non-positive values are ignored.
func WithMaxChunkLen(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 {
			c.maxLen = n
		}
	}
}

// NewChunker creates a Chunker with DefaultMaxChunkLen unless overridden.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{maxLen: DefaultMaxChunkLen}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxLen returns the maximum chunk body length in characters.
func (c *Chunker) MaxLen() int {
	return c.maxLen
}

// ChunkDocument chunks a fetched document and stamps its title on every chunk.
func (c *Chunker) ChunkDocument(doc domain.Document) []domain.Chunk {
	chunks := c.Chunk(doc.Text, doc.SourceID, doc.URL)
	for i := range chunks {
		chunks[i].PageTitle = doc.Title
	}
	return chunks
}

// Chunk turns raw markdown into chunks in document order.
//
// Top-level sections are emitted whole when they fit. A section that does not
// fit is emitted as its own intro followed by its subsections, recursively.
// Text that still does not fit and has no deeper heading is split on
// paragraphs, then lines, then characters.
func (c *Chunker) Chunk(markdown, sourceID, url string) []domain.Chunk {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	if strings.TrimSpace(markdown) == "" {
		return nil
	}

	root := parseSections(markdown)
	e := &emitter{maxLen: c.maxLen, sourceID: sourceID, url: url}

	e.emitText(nil, root.intro())
	for _, child := range root.children {
		e.emitSection(child)
	}

	return e.chunks
}

// section is a node of the heading tree. The root has level 0 and holds the
// preamble before the first heading.
type section struct {
	level    int
	path     []string
	lines    []string // heading line followed by the section's own body
	children []*section

	rendered bool
	text     string
}

// intro returns the section's heading line and body, without subsections.
func (s *section) intro() string {
	return strings.Join(s.lines, "\n")
}

// render returns the full text of the section including all subsections.
// The result is computed once per node.
func (s *section) render() string {
	if s.rendered {
		return s.text
	}

	var sb strings.Builder
	sb.WriteString(s.intro())
	for _, child := range s.children {
		sb.WriteString("\n")
		sb.WriteString(child.render())
	}

	s.text = sb.String()
	s.rendered = true
	return s.text
}

type heading struct {
	level int
	title string
}

// parseSections builds the heading tree for a document in a single pass.
func parseSections(markdown string) *section {
	lines := strings.Split(markdown, "\n")
	headings := findHeadings([]byte(markdown), lines)

	root := &section{}
	stack := []*section{root}

	for i, line := range lines {
		h, ok := headings[i]
		if !ok {
			top := stack[len(stack)-1]
			top.lines = append(top.lines, line)
			continue
		}

		for len(stack) > 1 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]

		path := make([]string, len(parent.path)+1)
		copy(path, parent.path)
		path[len(path)-1] = h.title

		s := &section{
			level: h.level,
			path:  path,
			lines: []string{line},
		}
		parent.children = append(parent.children, s)
		stack = append(stack, s)
	}

	return root
}

// findHeadings returns the ATX headings (levels 1..MaxHeadingLevel) among the
// document's top-level blocks, keyed by line index. Markdown parsing keeps
// '#' lines inside fenced code and HTML blocks out of the structure.
func findHeadings(src []byte, lines []string) map[int]heading {
	lineStarts := make([]int, len(lines))
	offset := 0
	for i, line := range lines {
		lineStarts[i] = offset
		offset += len(line) + 1
	}

	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	headings := make(map[int]heading)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > MaxHeadingLevel || h.Lines().Len() == 0 {
			continue
		}

		seg := h.Lines().At(0)
		line := sort.Search(len(lineStarts), func(i int) bool {
			return lineStarts[i] > seg.Start
		}) - 1
		if line < 0 {
			continue
		}

		// Setext headings are underlined rather than prefixed; only ATX
		// headings structure the document.
		if !strings.HasPrefix(strings.TrimLeft(lines[line], " "), "#") {
			continue
		}

		title := strings.TrimSpace(string(seg.Value(src)))
		if title == "" {
			continue
		}
		headings[line] = heading{level: h.Level, title: title}
	}

	return headings
}

type emitter struct {
	maxLen   int
	sourceID string
	url      string
	chunks   []domain.Chunk
}

func (e *emitter) emitSection(s *section) {
	if runeLen(strings.TrimSpace(s.render())) <= e.maxLen {
		e.add(s.path, s.render())
		return
	}

	e.emitText(s.path, s.intro())
	for _, child := range s.children {
		e.emitSection(child)
	}
}

// emitText emits text under a heading path, force-splitting it if needed.
func (e *emitter) emitText(path []string, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	if runeLen(body) <= e.maxLen {
		e.add(path, body)
		return
	}
	for _, piece := range splitParagraphs(body, e.maxLen) {
		e.add(path, piece)
	}
}

func (e *emitter) add(path []string, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	e.chunks = append(e.chunks, domain.Chunk{
		SourceID:    e.sourceID,
		URL:         e.url,
		HeadingPath: path,
		Body:        body,
		Position:    len(e.chunks),
	})
}

// splitParagraphs packs blank-line separated paragraphs into pieces of at most
// maxLen characters. Oversized paragraphs fall back to line packing.
func splitParagraphs(body string, maxLen int) []string {
	p := newPacker(maxLen, "\n\n")
	for _, para := range paragraphBreak.Split(body, -1) {
		para = strings.Trim(para, "\n")
		if strings.TrimSpace(para) == "" {
			continue
		}
		if runeLen(para) > maxLen {
			p.flush()
			p.out = append(p.out, splitLines(para, maxLen)...)
			continue
		}
		p.add(para)
	}
	p.flush()
	return p.out
}

// splitLines packs lines into pieces of at most maxLen characters.
// Lines longer than maxLen are cut on rune boundaries.
func splitLines(para string, maxLen int) []string {
	p := newPacker(maxLen, "\n")
	for _, line := range strings.Split(para, "\n") {
		if runeLen(line) > maxLen {
			p.flush()
			p.out = append(p.out, cutRunes(line, maxLen)...)
			continue
		}
		p.add(line)
	}
	p.flush()
	return p.out
}

// cutRunes splits s into consecutive pieces of at most n runes.
func cutRunes(s string, n int) []string {
	var out []string
	count := 0
	start := 0
	for i := range s {
		if count == n {
			out = append(out, s[start:i])
			start = i
			count = 0
		}
		count++
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// packer greedily joins parts with sep while the result stays within maxLen.
type packer struct {
	maxLen int
	sep    string
	sepLen int

	parts []string
	size  int
	out   []string
}

func newPacker(maxLen int, sep string) *packer {
	return &packer{maxLen: maxLen, sep: sep, sepLen: runeLen(sep)}
}

func (p *packer) add(part string) {
	n := runeLen(part)
	if len(p.parts) > 0 && p.size+p.sepLen+n > p.maxLen {
		p.flush()
	}
	if len(p.parts) > 0 {
		p.size += p.sepLen
	}
	p.parts = append(p.parts, part)
	p.size += n
}

func (p *packer) flush() {
	if len(p.parts) == 0 {
		return
	}
	p.out = append(p.out, strings.Join(p.parts, p.sep))
	p.parts = nil
	p.size = 0
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
