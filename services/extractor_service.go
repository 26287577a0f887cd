package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

func init() {
	// Load .env file from the current directory
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}
	if err := license.SetMeteredKey(os.Getenv("UNIDOC_LICENSE_KEY")); err != nil {
		log.Printf("WARN: Failed to set Unidoc license key: %v. PDF processing will fail.", err)
	}
}

// IsSupportedFilename reports whether the filename carries one of the
// extensions the extractor can handle.
func IsSupportedFilename(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".pdf", ".docx", ".epub":
		return true
	default:
		return false
	}
}

// ExtractText returns the plain text content of an uploaded document,
// dispatching on the filename extension. An unrecognized extension yields an
// unsupported-format error; a recognized format that cannot be decoded yields
// a parse-failure error. Both are per-document conditions, so a failing file
// never aborts its upload siblings.
func ExtractText(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".txt", ".md":
		return string(data), nil
	case ".pdf":
		return extractTextFromPDF(data)
	case ".docx":
		return extractTextFromDOCX(data)
	case ".epub":
		return extractTextFromEPUB(data)
	default:
		return "", newPipelineError(ErrKindUnsupportedFormat,
			fmt.Sprintf("unsupported file type %q", ext), nil)
	}
}

// extractTextFromPDF uses UniPDF to get all text from a PDF document.
func extractTextFromPDF(data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", newPipelineError(ErrKindParseFailure, "could not open pdf", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", newPipelineError(ErrKindParseFailure, "could not read pdf page count", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", newPipelineError(ErrKindParseFailure, fmt.Sprintf("could not read pdf page %d", i), err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", newPipelineError(ErrKindParseFailure, fmt.Sprintf("could not build extractor for page %d", i), err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return "", newPipelineError(ErrKindParseFailure, fmt.Sprintf("could not extract text from page %d", i), err)
		}
		sb.WriteString(text)
		sb.WriteString("\n\n") // Add space between pages
	}

	return sb.String(), nil
}

// extractTextFromDOCX pulls the text runs out of word/document.xml. A .docx
// file is a ZIP container; the body text lives in <w:t> elements with
// paragraph boundaries at </w:p>.
func extractTextFromDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", newPipelineError(ErrKindParseFailure, "docx is not a valid zip archive", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", newPipelineError(ErrKindParseFailure, "docx is missing word/document.xml", nil)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", newPipelineError(ErrKindParseFailure, "could not open word/document.xml", err)
	}
	defer rc.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", newPipelineError(ErrKindParseFailure, "could not parse word/document.xml", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// extractTextFromEPUB strips the markup from the XHTML documents in the EPUB
// container. Documents are read in spine order when the package manifest can
// be resolved, otherwise in archive order.
func extractTextFromEPUB(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", newPipelineError(ErrKindParseFailure, "epub is not a valid zip archive", err)
	}

	members := epubSpineMembers(zr)
	if len(members) == 0 {
		for _, f := range zr.File {
			ext := strings.ToLower(filepath.Ext(f.Name))
			if ext == ".xhtml" || ext == ".html" || ext == ".htm" {
				members = append(members, f)
			}
		}
	}
	if len(members) == 0 {
		return "", newPipelineError(ErrKindParseFailure, "epub contains no xhtml documents", nil)
	}

	var sb strings.Builder
	for _, f := range members {
		rc, err := f.Open()
		if err != nil {
			return "", newPipelineError(ErrKindParseFailure, fmt.Sprintf("could not open epub member %s", f.Name), err)
		}
		text, err := stripMarkup(rc)
		rc.Close()
		if err != nil {
			return "", newPipelineError(ErrKindParseFailure, fmt.Sprintf("could not parse epub member %s", f.Name), err)
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// epubSpineMembers resolves the reading order declared by the EPUB package:
// META-INF/container.xml names the OPF rootfile, whose manifest maps item IDs
// to hrefs and whose spine lists the IDs in order. Any resolution failure
// returns nil so the caller falls back to archive order.
func epubSpineMembers(zr *zip.Reader) []*zip.File {
	byName := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		byName[f.Name] = f
	}

	container := byName["META-INF/container.xml"]
	if container == nil {
		return nil
	}
	var cont struct {
		Rootfiles []struct {
			FullPath string `xml:"full-path,attr"`
		} `xml:"rootfiles>rootfile"`
	}
	if err := decodeZipXML(container, &cont); err != nil || len(cont.Rootfiles) == 0 {
		return nil
	}

	opf := byName[cont.Rootfiles[0].FullPath]
	if opf == nil {
		return nil
	}
	var pkg struct {
		Items []struct {
			ID   string `xml:"id,attr"`
			Href string `xml:"href,attr"`
		} `xml:"manifest>item"`
		Refs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"spine>itemref"`
	}
	if err := decodeZipXML(opf, &pkg); err != nil {
		return nil
	}

	hrefByID := make(map[string]string, len(pkg.Items))
	for _, item := range pkg.Items {
		hrefByID[item.ID] = item.Href
	}

	// Manifest hrefs are relative to the OPF file's directory.
	base := filepath.Dir(cont.Rootfiles[0].FullPath)
	var members []*zip.File
	for _, ref := range pkg.Refs {
		href, ok := hrefByID[ref.IDRef]
		if !ok {
			continue
		}
		name := href
		if base != "." {
			name = base + "/" + href
		}
		if f := byName[name]; f != nil {
			members = append(members, f)
		}
	}
	return members
}

func decodeZipXML(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

// stripMarkup collects the character data of an XHTML document, skipping
// script and style elements.
func stripMarkup(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var sb strings.Builder
	skipDepth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			if name == "script" || name == "style" {
				skipDepth++
			}
		case xml.EndElement:
			name := strings.ToLower(t.Name.Local)
			if (name == "script" || name == "style") && skipDepth > 0 {
				skipDepth--
			}
			switch name {
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "title":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if skipDepth == 0 {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
