package vectorindex

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const (
	// VectorsFile holds ids and raw vectors in a little-endian binary layout.
	VectorsFile = "vectors.bin"
	// MetasFile holds one JSON Meta per line, in vector order.
	MetasFile = "metas.jsonl"
)

// MarshalVectors encodes dim(u32), n(u32), then per item idLen(u32), id
// bytes and dim float32 values.
func MarshalVectors(metas []Meta, vectors [][]float32) ([]byte, error) {
	if len(metas) != len(vectors) {
		return nil, fmt.Errorf("vectorindex: %d metas for %d vectors", len(metas), len(vectors))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	size := 8
	for _, m := range metas {
		size += 4 + len(m.ID) + 4*dim
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, uint32(dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(metas)))
	for i, m := range metas {
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("vectorindex: vector %s has dim %d, expected %d", m.ID, len(vectors[i]), dim)
		}
		out = binary.LittleEndian.AppendUint32(out, uint32(len(m.ID)))
		out = append(out, m.ID...)
		for _, x := range vectors[i] {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(x))
		}
	}
	return out, nil
}

// UnmarshalVectors decodes the MarshalVectors layout.
func UnmarshalVectors(data []byte) ([]string, [][]float32, error) {
	if len(data) < 8 {
		return nil, nil, errors.New("vectorindex: invalid vector data")
	}
	off := 0
	u32 := func() (uint32, error) {
		if off+4 > len(data) {
			return 0, errors.New("vectorindex: truncated vector data")
		}
		v := binary.LittleEndian.Uint32(data[off:])
		off += 4
		return v, nil
	}
	d, _ := u32()
	n, _ := u32()
	dim := int(d)
	// each record holds at least an id length and dim floats
	if minLen := uint64(n) * (4 + 4*uint64(d)); minLen > uint64(len(data)-off) {
		return nil, nil, fmt.Errorf("vectorindex: header claims %d vectors of dim %d but only %d bytes follow", n, d, len(data)-off)
	}
	ids := make([]string, 0, n)
	vecs := make([][]float32, 0, n)
	for i := 0; i < int(n); i++ {
		l, err := u32()
		if err != nil {
			return nil, nil, err
		}
		if off+int(l) > len(data) {
			return nil, nil, errors.New("vectorindex: truncated id")
		}
		ids = append(ids, string(data[off:off+int(l)]))
		off += int(l)
		vec := make([]float32, dim)
		for j := range vec {
			bits, err := u32()
			if err != nil {
				return nil, nil, err
			}
			vec[j] = math.Float32frombits(bits)
		}
		vecs = append(vecs, vec)
	}
	if off != len(data) {
		return nil, nil, fmt.Errorf("vectorindex: %d trailing bytes", len(data)-off)
	}
	return ids, vecs, nil
}

// Save writes the index artifact (VectorsFile and MetasFile) into dir.
// Each file is written to a temp file and renamed into place.
func Save(dir string, idx Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorindex: creating %s: %w", dir, err)
	}
	metas, vectors := idx.Entries()
	data, err := MarshalVectors(metas, vectors)
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, VectorsFile), func(w *bufio.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, MetasFile), func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, m := range metas {
			if err := enc.Encode(m); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads the artifact in dir into a new index of the named implementation.
func Load(dir, impl string) (Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, fmt.Errorf("vectorindex: %w", err)
	}
	ids, vectors, err := UnmarshalVectors(data)
	if err != nil {
		return nil, err
	}
	metas, err := readMetas(filepath.Join(dir, MetasFile))
	if err != nil {
		return nil, err
	}
	if len(metas) != len(ids) {
		return nil, fmt.Errorf("vectorindex: %d metas for %d vectors", len(metas), len(ids))
	}
	for i := range ids {
		if metas[i].ID != ids[i] {
			return nil, fmt.Errorf("vectorindex: meta %d id %q does not match vector id %q", i, metas[i].ID, ids[i])
		}
	}
	idx, err := New(impl)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return idx, nil
	}
	if err := idx.Add(metas, vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

func readMetas(path string) ([]Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: %w", err)
	}
	defer f.Close()
	var metas []Meta
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var m Meta
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			return nil, fmt.Errorf("vectorindex: decoding %s: %w", path, err)
		}
		metas = append(metas, m)
	}
	return metas, sc.Err()
}

func writeAtomic(path string, fill func(w *bufio.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("vectorindex: %w", err)
	}
	defer os.Remove(tmp.Name())
	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		tmp.Close()
		return fmt.Errorf("vectorindex: writing %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
