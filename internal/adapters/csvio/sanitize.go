package csvio

import (
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
)

// namePolicy strips every tag from student names. Vendor exports sometimes
// carry markup copied from the LMS.
var namePolicy = bluemonday.StrictPolicy()

// cleanName removes markup from a student name, leaving entities decoded.
func cleanName(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(html.UnescapeString(namePolicy.Sanitize(s)))
}

// checkText rejects non-empty files whose content is not text, such as a
// spreadsheet saved as xlsx instead of exported to CSV. The file is rewound.
func checkText(file *os.File) error {
	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	mt, err := mimetype.DetectReader(file)
	if err != nil {
		return err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return nil
		}
	}
	return fmt.Errorf("%w: detected %s", ErrNotText, mt.String())
}
