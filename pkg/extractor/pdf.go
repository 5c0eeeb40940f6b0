package extractor

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"
)

// Error messages
const (
	errOpenPDF = "extractor: failed to open PDF %s: %w"
	errReadPDF = "extractor: failed to read PDF: %w"
)

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether the file at path starts with the PDF signature.
func IsPDF(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	header := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return bytes.Equal(header[:n], pdfMagic), nil
}

// TextFromPDF returns the plain text of every readable page in the PDF at path.
func TextFromPDF(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf(errOpenPDF, path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf(errOpenPDF, path, err)
	}
	return TextFromPDFReader(file, info.Size())
}

// TextFromPDFReader is TextFromPDF for an in-memory or already opened document.
func TextFromPDFReader(r io.ReaderAt, size int64) (text string, err error) {
	// the pdf package panics on some malformed documents
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf(errReadPDF, fmt.Errorf("%v", rec))
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf(errReadPDF, err)
	}
	return pageText(reader), nil
}

func pageText(reader *pdf.Reader) string {
	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			logrus.Warnf("extractor: pageText - error reading page %d: %v", i, err)
			continue
		}
		text.WriteString(content)
		text.WriteString("\n")
	}
	logrus.Debugf("extractor: pageText - read %d pages, %d bytes", reader.NumPage(), text.Len())
	return text.String()
}
