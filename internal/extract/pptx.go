package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	nsPresentation = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsDrawing      = "http://schemas.openxmlformats.org/drawingml/2006/main"
)

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type slideFile struct {
	num  int
	file *zip.File
}

// extractPPTX returns the text of every text shape, slide by slide, one
// shape per line. Paragraphs inside a shape are separated by newlines.
func extractPPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var slides []slideFile
	for _, f := range zr.File {
		m := slidePart.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slideFile{num: n, file: f})
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("%w: no slides found", ErrCorrupt)
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var b strings.Builder
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: slide %d: %v", ErrCorrupt, s.num, err)
		}
		shapes, err := slideShapes(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: slide %d: %v", ErrCorrupt, s.num, err)
		}
		for _, sh := range shapes {
			b.WriteString(sh)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// slideShapes walks one slide part and returns the text of each shape.
func slideShapes(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		shapes     []string
		paragraphs []string
		para       strings.Builder
		depth      int // nesting of p:sp elements
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsPresentation && t.Name.Local == "sp":
				if depth == 0 {
					paragraphs = paragraphs[:0]
				}
				depth++
			case depth > 0 && t.Name.Space == nsDrawing && t.Name.Local == "p":
				para.Reset()
			case depth > 0 && t.Name.Space == nsDrawing && t.Name.Local == "t":
				inText = true
			case depth > 0 && t.Name.Space == nsDrawing && t.Name.Local == "br":
				para.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch {
			case t.Name.Space == nsDrawing && t.Name.Local == "t":
				inText = false
			case depth > 0 && t.Name.Space == nsDrawing && t.Name.Local == "p":
				paragraphs = append(paragraphs, para.String())
			case t.Name.Space == nsPresentation && t.Name.Local == "sp":
				depth--
				if depth == 0 {
					text := strings.Join(paragraphs, "\n")
					if strings.TrimSpace(text) != "" {
						shapes = append(shapes, text)
					}
				}
			}
		}
	}
	return shapes, nil
}
