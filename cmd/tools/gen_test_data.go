package main

import (
	"crypto/rand"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"cursed-archive/domain"

	"github.com/jung-kurt/gofpdf"
)

// Generates sample files to push through injest: an empty file, a single chunk
// PDF, a PNG and a binary spanning several chunks.
func main() {
	outputDir := "./test_data"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to create %s: %v\n", outputDir, err)
		os.Exit(1)
	}

	fmt.Println("🚀 Generating upload samples...")

	steps := []struct {
		name string
		gen  func(path string) error
	}{
		{"empty.txt", genEmpty},
		{"report.pdf", genPDF},
		{"capture.png", genImage},
		{"blob.bin", genBinary(2*domain.MB + domain.MB/2)},
	}
	failed := 0
	for _, step := range steps {
		path := filepath.Join(outputDir, step.name)
		if err := step.gen(path); err != nil {
			fmt.Printf("❌ %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("✅ %s\n", path)
	}
	if failed > 0 {
		os.Exit(1)
	}

	fmt.Printf("\nReady, try: injest --files %s\n", filepath.Join(outputDir, "*"))
}

func genEmpty(path string) error {
	return os.WriteFile(path, nil, 0o644)
}

// genPDF fits in a single chunk
func genPDF(path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 20)
	pdf.Cell(40, 20, "Cursed Archive upload sample")
	pdf.Ln(20)

	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 10, "The server sniffs application/pdf from the first chunk of this file.", "", "", false)
	return pdf.OutputFileAndClose(path)
}

func genImage(path string) error {
	width, height := 800, 600
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: 100, B: 200, A: 0xff})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// genBinary writes random bytes, size is not a multiple of the default chunk size
func genBinary(size int) func(path string) error {
	return func(path string) error {
		content := make([]byte, size)
		if _, err := rand.Read(content); err != nil {
			return err
		}
		return os.WriteFile(path, content, 0o644)
	}
}
