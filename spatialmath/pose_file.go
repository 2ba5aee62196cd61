package spatialmath

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ErrPoseParse is returned (wrapped) when pose data cannot be decoded.
var ErrPoseParse = errors.New("unable to parse pose")

// PoseEncoding is the on-disk layout of a pose file. Both layouts hold the 16 elements of a
// 4x4 matrix in row-major order.
type PoseEncoding int

const (
	// PoseEncodingText is 16 whitespace separated decimal numbers.
	PoseEncodingText PoseEncoding = iota
	// PoseEncodingBinary is 16 little-endian IEEE-754 float32 values.
	PoseEncodingBinary
)

func (enc PoseEncoding) String() string {
	switch enc {
	case PoseEncodingText:
		return "ascii"
	case PoseEncodingBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// PoseEncodingFromPath picks the encoding from the file extension: ".txt" is text and
// ".transform" is binary, case-insensitively.
func PoseEncodingFromPath(path string) (PoseEncoding, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return PoseEncodingText, nil
	case ".transform":
		return PoseEncodingBinary, nil
	default:
		return 0, errors.Errorf("unrecognized pose file extension %q", filepath.Ext(path))
	}
}

// IsPoseFile returns whether path has a pose file extension.
func IsPoseFile(path string) bool {
	_, err := PoseEncodingFromPath(path)
	return err == nil
}

// ReadPose decodes a single pose from r.
func ReadPose(r io.Reader, enc PoseEncoding) (Pose, error) {
	vals := make([]float64, 16)
	switch enc {
	case PoseEncodingText:
		scanner := bufio.NewScanner(r)
		scanner.Split(bufio.ScanWords)
		for i := range vals {
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return nil, errors.Wrap(err, "error reading pose")
				}
				return nil, errors.Wrapf(ErrPoseParse, "expected 16 values, got %d", i)
			}
			v, err := strconv.ParseFloat(scanner.Text(), 64)
			if err != nil {
				return nil, errors.Wrapf(ErrPoseParse, "value %d: %v", i, err)
			}
			vals[i] = v
		}
	case PoseEncodingBinary:
		var raw [16]float32
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, errors.Wrap(ErrPoseParse, "expected 64 bytes of float32 data")
			}
			return nil, errors.Wrap(err, "error reading pose")
		}
		for i, v := range raw {
			vals[i] = float64(v)
		}
	default:
		return nil, errors.Errorf("unknown pose encoding %d", enc)
	}
	pose, err := NewPoseFromRowMajor(vals)
	if err != nil {
		return nil, errors.Wrap(ErrPoseParse, err.Error())
	}
	return pose, nil
}

// ReadPoseFile opens path and decodes it with the encoding implied by its extension.
func ReadPoseFile(path string) (Pose, error) {
	enc, err := PoseEncodingFromPath(path)
	if err != nil {
		return nil, err
	}
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening pose file")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	pose, err := ReadPose(f, enc)
	if err != nil {
		return nil, errors.Wrapf(err, "pose file %q", path)
	}
	return pose, nil
}
