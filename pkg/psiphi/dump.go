package psiphi

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"

	"driftsearch/pkg/imagery"
)

// Dump writes every psi plane into psiDir and every phi plane into phiDir as
// little-endian float32 blobs named by frame index (psi-000.dat, ...), with a
// 16-bit grayscale TIFF preview next to each blob. This is a diagnostic
// surface for inspecting the matched-filter inputs, not part of the search
// contract.
func (p *Planes) Dump(psiDir, phiDir string) error {
	if err := dumpPlanes(p.Psi, psiDir, "psi"); err != nil {
		return err
	}
	return dumpPlanes(p.Phi, phiDir, "phi")
}

func dumpPlanes(planes []*imagery.RawImage, dir, prefix string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", prefix, err)
	}
	for i, plane := range planes {
		blobPath := filepath.Join(dir, fmt.Sprintf("%s-%03d.dat", prefix, i))
		if err := writeBlob(blobPath, plane.Data()); err != nil {
			return fmt.Errorf("failed to write %s plane %d: %w", prefix, i, err)
		}
		tiffPath := filepath.Join(dir, fmt.Sprintf("%s-%03d.tiff", prefix, i))
		if err := writePreview(tiffPath, plane); err != nil {
			return fmt.Errorf("failed to write %s preview %d: %w", prefix, i, err)
		}
	}
	return nil
}

func writeBlob(path string, data []float32) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return binary.Write(file, binary.LittleEndian, data)
}

// writePreview rescales the plane to the full 16-bit range, mapping NoData
// pixels to black.
func writePreview(path string, plane *imagery.RawImage) error {
	data := plane.Data()

	min := float32(0)
	max := float32(0)
	first := true
	for _, v := range data {
		if v == imagery.NoData {
			continue
		}
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	scale := max - min
	if scale <= 0 {
		scale = 1
	}

	img := image.NewGray16(image.Rect(0, 0, plane.Width(), plane.Height()))
	for y := 0; y < plane.Height(); y++ {
		for x := 0; x < plane.Width(); x++ {
			v := data[y*plane.Width()+x]
			if v == imagery.NoData {
				img.SetGray16(x, y, color.Gray16{Y: 0})
				continue
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16((v - min) / scale * 65535.0)})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return tiff.Encode(file, img, nil)
}
