package ndarray

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrNPY is returned for malformed or unsupported .npy content.
var ErrNPY = errors.New("invalid npy data")

var npyMagic = []byte("\x93NUMPY")

var (
	npyDescrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	npyFortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// IsNPY reports whether d starts with the .npy magic string.
func IsNPY(d []byte) bool {
	return bytes.HasPrefix(d, npyMagic)
}

// DecodeNPY decodes an array stored in the NumPy .npy format. Numeric and
// boolean dtypes of either byte order are supported, in C or Fortran order.
func DecodeNPY(d []byte) (*Array, error) {
	if !IsNPY(d) || len(d) < 10 {
		return nil, fmt.Errorf("%w: missing magic", ErrNPY)
	}
	major := d[6]
	var hlen, off int
	switch major {
	case 1:
		hlen, off = int(binary.LittleEndian.Uint16(d[8:10])), 10
	case 2, 3:
		if len(d) < 12 {
			return nil, fmt.Errorf("%w: truncated header", ErrNPY)
		}
		hlen, off = int(binary.LittleEndian.Uint32(d[8:12])), 12
	default:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrNPY, major)
	}
	if len(d) < off+hlen {
		return nil, fmt.Errorf("%w: truncated header", ErrNPY)
	}
	header := string(d[off : off+hlen])
	body := d[off+hlen:]

	m := npyDescrRe.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("%w: no descr in header %q", ErrNPY, header)
	}
	dt, err := parseDType(m[1])
	if err != nil {
		return nil, err
	}
	fortran := false
	if m := npyFortranRe.FindStringSubmatch(header); m != nil {
		fortran = m[1] == "True"
	}
	m = npyShapeRe.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("%w: no shape in header %q", ErrNPY, header)
	}
	shape := []int{}
	for _, p := range strings.Split(m[1], ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad dimension %q", ErrNPY, p)
		}
		shape = append(shape, n)
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	if len(body) < n*dt.size {
		return nil, fmt.Errorf("%w: %d bytes of data for %d elements of %d bytes", ErrNPY, len(body), n, dt.size)
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = dt.read(body[i*dt.size:])
	}
	a := newArray(shape, data)
	if fortran && len(shape) > 1 {
		a = fromFortran(a)
	}
	return a, nil
}

type npyDType struct {
	size int
	read func([]byte) float64
}

func parseDType(descr string) (npyDType, error) {
	if len(descr) < 3 {
		return npyDType{}, fmt.Errorf("%w: dtype %q", ErrNPY, descr)
	}
	var order binary.ByteOrder = binary.LittleEndian
	switch descr[0] {
	case '>':
		order = binary.BigEndian
	case '<', '|', '=':
	default:
		return npyDType{}, fmt.Errorf("%w: dtype %q", ErrNPY, descr)
	}
	switch descr[1:] {
	case "f8":
		return npyDType{8, func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }}, nil
	case "f4":
		return npyDType{4, func(b []byte) float64 { return float64(math.Float32frombits(order.Uint32(b))) }}, nil
	case "i8":
		return npyDType{8, func(b []byte) float64 { return float64(int64(order.Uint64(b))) }}, nil
	case "i4":
		return npyDType{4, func(b []byte) float64 { return float64(int32(order.Uint32(b))) }}, nil
	case "i2":
		return npyDType{2, func(b []byte) float64 { return float64(int16(order.Uint16(b))) }}, nil
	case "i1":
		return npyDType{1, func(b []byte) float64 { return float64(int8(b[0])) }}, nil
	case "u8":
		return npyDType{8, func(b []byte) float64 { return float64(order.Uint64(b)) }}, nil
	case "u4":
		return npyDType{4, func(b []byte) float64 { return float64(order.Uint32(b)) }}, nil
	case "u2":
		return npyDType{2, func(b []byte) float64 { return float64(order.Uint16(b)) }}, nil
	case "u1", "b1":
		return npyDType{1, func(b []byte) float64 { return float64(b[0]) }}, nil
	}
	return npyDType{}, fmt.Errorf("%w: unsupported dtype %q", ErrNPY, descr)
}

// fromFortran reorders column-major data into a row-major array.
func fromFortran(a *Array) *Array {
	nd := len(a.shape)
	fstrides := make([]int, nd)
	s := 1
	for i := range nd {
		fstrides[i] = s
		s *= a.shape[i]
	}
	res := newArray(a.shape, make([]float64, len(a.data)))
	pos := make([]int, nd)
	for i := range res.data {
		off := 0
		for ax, p := range pos {
			off += p * fstrides[ax]
		}
		res.data[i] = a.data[off]
		for ax := nd - 1; ax >= 0; ax-- {
			pos[ax]++
			if pos[ax] < a.shape[ax] {
				break
			}
			pos[ax] = 0
		}
	}
	return res
}

// EncodeNPY encodes a as a version 1.0 .npy file of little-endian float64.
func EncodeNPY(a *Array) []byte {
	dims := make([]string, len(a.shape))
	for i, d := range a.shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := strings.Join(dims, ", ")
	if len(dims) == 1 {
		shape += ","
	}
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%s), }", shape)
	// pad so that magic + version + length + header + newline is 64 byte aligned
	total := len(npyMagic) + 4 + len(header) + 1
	if pad := (64 - total%64) % 64; pad > 0 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"

	buf := bytes.NewBuffer(nil)
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	var hl [2]byte
	binary.LittleEndian.PutUint16(hl[:], uint16(len(header)))
	buf.Write(hl[:])
	buf.WriteString(header)
	var f [8]byte
	for _, v := range a.data {
		binary.LittleEndian.PutUint64(f[:], math.Float64bits(v))
		buf.Write(f[:])
	}
	return buf.Bytes()
}
