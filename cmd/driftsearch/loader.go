package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"driftsearch/pkg/imagery"
	"driftsearch/pkg/psf"
)

// blobLoader reads frames from the raw little-endian format the external
// pipeline exports: int32 width, int32 height, float64 timestamp, then the
// science plane (float32), the variance plane (float32) and the mask plane
// (int32), each width*height values row-major.
type blobLoader struct {
	psf *psf.PSF
}

func (l *blobLoader) Load(path string) (*imagery.LayeredImage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var width, height int32
	var time float64
	if err := binary.Read(file, binary.LittleEndian, &width); err != nil {
		return nil, fmt.Errorf("bad frame header: %w", err)
	}
	if err := binary.Read(file, binary.LittleEndian, &height); err != nil {
		return nil, fmt.Errorf("bad frame header: %w", err)
	}
	if err := binary.Read(file, binary.LittleEndian, &time); err != nil {
		return nil, fmt.Errorf("bad frame header: %w", err)
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("bad frame dimensions %dx%d", width, height)
	}

	n := int(width) * int(height)
	science := make([]float32, n)
	variance := make([]float32, n)
	mask := make([]int32, n)
	if err := binary.Read(file, binary.LittleEndian, science); err != nil {
		return nil, fmt.Errorf("bad science plane: %w", err)
	}
	if err := binary.Read(file, binary.LittleEndian, variance); err != nil {
		return nil, fmt.Errorf("bad variance plane: %w", err)
	}
	if err := binary.Read(file, binary.LittleEndian, mask); err != nil {
		return nil, fmt.Errorf("bad mask plane: %w", err)
	}

	sci, err := imagery.NewRawImageFromData(science, int(width), int(height))
	if err != nil {
		return nil, err
	}
	vari, err := imagery.NewRawImageFromData(variance, int(width), int(height))
	if err != nil {
		return nil, err
	}
	msk, err := imagery.NewMaskImageFromData(mask, int(width), int(height))
	if err != nil {
		return nil, err
	}
	return imagery.NewLayeredImage(sci, vari, msk, time, l.psf)
}
