package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupported is returned for files that are not text documents.
var ErrUnsupported = errors.New("unsupported document type")

// Text extracts the plain text of a txt, pdf or docx file.
func Text(path string) (string, error) {
	cat, mime, err := Detect(path)
	if err != nil {
		return "", err
	}
	if cat != CategoryDocument {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mime)
	}
	switch mime {
	case mimePDF:
		return pdfText(path)
	case mimeDOCX:
		return docxText(path)
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.ToValidUTF8(string(b), ""), nil
	}
}

// pdfText reads the plain text of every page. The pdf package panics on
// malformed object references; those panics come back as errors.
func pdfText(path string) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("read pdf: %v", p)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// docxText reads word/document.xml and joins the text runs, one line per
// paragraph.
func docxText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return documentXMLText(rc)
	}
	return "", errors.New("docx: word/document.xml not found")
}

func documentXMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
