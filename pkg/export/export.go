// Package export writes reconstruction results and reads scattering profiles.
//
// Tabular data (profiles, residual history) is CSV with a header row. Density
// maps are written as raw little-endian float32 voxels in row-major order,
// x slowest, with a YAML header next to them describing the grid.
package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"saxsdensity/internal/models"
	"saxsdensity/pkg/reconstruction"
)

// HistoryRow is one iteration of a run
type HistoryRow struct {
	Iteration     int     `csv:"iteration"`
	Residual      float64 `csv:"residual"`
	SupportVolume float64 `csv:"support_volume"`
}

// FitRow compares the scaled calculated intensity of a shell with the data
// interpolated onto that shell
type FitRow struct {
	Q     float64 `csv:"q"`
	IExp  float64 `csv:"i_exp"`
	Sigma float64 `csv:"sigma"`
	ICalc float64 `csv:"i_calc"`
}

// DensityHeader describes a raw density file
type DensityHeader struct {
	RunID     string     `yaml:"runId"`
	N         int        `yaml:"n"`
	VoxelSize float64    `yaml:"voxelSize"`
	Origin    [3]float64 `yaml:"origin"`
	DataType  string     `yaml:"dataType"`
	ByteOrder string     `yaml:"byteOrder"`
	Layout    string     `yaml:"layout"`
	Reason    string     `yaml:"reason"`
	Residual  float64    `yaml:"residual"`
	RG        float64    `yaml:"radiusOfGyration"`
	Volume    float64    `yaml:"supportVolume"`
}

// ReadProfileCSV reads a profile with columns q, i and sigma
func ReadProfileCSV(r io.Reader) (*models.ScatteringProfile, error) {
	var points []models.Point
	if err := gocsv.Unmarshal(r, &points); err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	return &models.ScatteringProfile{Points: points}, nil
}

// ReadProfileFile reads a profile CSV from path
func ReadProfileFile(path string) (*models.ScatteringProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}
	defer f.Close()
	return ReadProfileCSV(f)
}

// WriteProfileCSV writes p with columns q, i and sigma
func WriteProfileCSV(w io.Writer, p *models.ScatteringProfile) error {
	if err := gocsv.Marshal(p.Points, w); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}

// WriteHistoryCSV writes the per-iteration residual and support volume of res
func WriteHistoryCSV(w io.Writer, res *reconstruction.Result) error {
	rows := make([]HistoryRow, len(res.Residuals))
	for i, r := range res.Residuals {
		rows[i] = HistoryRow{Iteration: i, Residual: r}
		if i < len(res.SupportVolumes) {
			rows[i].SupportVolume = res.SupportVolumes[i]
		}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

// WriteFitCSV writes the scaled final profile of res next to the data over
// the shells that have both a calculated value and a measurement
func WriteFitCSV(w io.Writer, res *reconstruction.Result) error {
	fp, target := res.FinalProfile, res.Target
	if target == nil {
		return fmt.Errorf("writing fit: result has no target profile")
	}
	rows := make([]FitRow, 0, len(fp.Q))
	for b := range fp.Q {
		if !target.Usable(b, fp) {
			continue
		}
		rows = append(rows, FitRow{
			Q:     fp.Q[b],
			IExp:  target.I[b],
			Sigma: target.Sigma[b],
			ICalc: res.Summary.Scale * fp.I[b],
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing fit: %w", err)
	}
	return nil
}

// WriteDensity writes the voxels of g as little-endian float32
func WriteDensity(w io.Writer, g *models.DensityGrid) error {
	buf := make([]byte, 4*len(g.Data))
	for i, v := range g.Data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing density: %w", err)
	}
	return nil
}

// ReadDensity reads n³ little-endian float32 voxels written by WriteDensity
func ReadDensity(r io.Reader, header DensityHeader) (*models.DensityGrid, error) {
	g := models.NewDensityGrid(header.N, header.VoxelSize, header.Origin)
	buf := make([]byte, 4*len(g.Data))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading density: %w", err)
	}
	for i := range g.Data {
		g.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
	}
	return g, nil
}

// NewDensityHeader describes the density of res
func NewDensityHeader(res *reconstruction.Result) DensityHeader {
	return DensityHeader{
		RunID:     res.RunID,
		N:         res.Density.N,
		VoxelSize: res.Density.VoxelSize,
		Origin:    res.Density.Origin,
		DataType:  "float32",
		ByteOrder: "little",
		Layout:    "xyz row-major, z fastest",
		Reason:    string(res.Reason),
		Residual:  res.Summary.Residual,
		RG:        res.Summary.RadiusOfGyration,
		Volume:    res.Summary.SupportVolume,
	}
}

// WriteResult writes every output of res into dir:
// density.bin, density.yaml, history.csv and fit.csv.
func WriteResult(dir string, res *reconstruction.Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	header, err := yaml.Marshal(NewDensityHeader(res))
	if err != nil {
		return fmt.Errorf("encoding density header: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "density.yaml"), header, 0644); err != nil {
		return fmt.Errorf("writing density header: %w", err)
	}

	outputs := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"density.bin", func(w io.Writer) error { return WriteDensity(w, res.Density) }},
		{"history.csv", func(w io.Writer) error { return WriteHistoryCSV(w, res) }},
		{"fit.csv", func(w io.Writer) error { return WriteFitCSV(w, res) }},
	}
	for _, out := range outputs {
		if err := writeFile(filepath.Join(dir, out.name), out.write); err != nil {
			return err
		}
	}
	return nil
}

// ReadDensityHeader reads a header written by WriteResult
func ReadDensityHeader(path string) (DensityHeader, error) {
	var h DensityHeader
	data, err := os.ReadFile(path)
	if err != nil {
		return h, fmt.Errorf("reading density header: %w", err)
	}
	if err := yaml.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("parsing density header: %w", err)
	}
	return h, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
