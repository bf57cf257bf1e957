// Package pdf assembles captured page images into a single document.
package pdf

import (
	"fmt"
	"path/filepath"
	"strings"

	pdfcpu_api "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ztrue/tracerr"
)

// importableExtensions lists the image formats pdfcpu can import directly.
// Other captured formats (webp, svg, avif) are left out of the PDF.
var importableExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// FromFiles builds a PDF at pdfPath from the given image files, keeping
// their order. Files in formats pdfcpu cannot import are skipped.
func FromFiles(files []string, pdfPath string) error {
	var images []string
	for _, f := range files {
		if importableExtensions[strings.ToLower(filepath.Ext(f))] {
			images = append(images, f)
		}
	}
	if len(images) == 0 {
		return fmt.Errorf("no importable images to assemble into %s", pdfPath)
	}

	conf := model.NewDefaultConfiguration()
	if err := pdfcpu_api.ImportImagesFile(images, pdfPath, nil, conf); err != nil {
		return tracerr.Wrap(err)
	}
	return nil
}
