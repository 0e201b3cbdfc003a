package glyphkit

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"sort"
)

// Dump file layout, version 1:
//
//	header   magic "GCACHE01" | version u32 | entry count u32
//	version  backend version: len u16 | bytes
//	entries  fp_len u16 | fp bytes | tag u8 | art_len u32 | art bytes |
//	         fnv64a(art bytes) u64
//
// All integers little-endian. Entries are sorted by fingerprint bytes so
// dumping the same cache state twice produces identical files.

const (
	dumpMagic   = "GCACHE01"
	dumpVersion = 1

	// maxDumpArtifact rejects absurd entry lengths before allocating.
	maxDumpArtifact = 1 << 30
)

// Dump writes every Ready entry to w. backendVersion is recorded in the
// file: artifacts are only bit-reproducible for the backend revision
// that produced them, so Load refuses files from a different one.
//
// Dumps are advisory. A cache never needs one to function, and a partial
// or stale dump costs only re-production.
func (c *GlyphCache) Dump(w io.Writer, backendVersion string) error {
	entries := c.snapshot()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].fp.key() < entries[j].fp.key()
	})

	bw := bufio.NewWriter(w)

	var hdr [16]byte
	copy(hdr[:8], dumpMagic)
	binary.LittleEndian.PutUint32(hdr[8:12], dumpVersion)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(entries)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("dump: %w", err)
	}

	if len(backendVersion) > math.MaxUint16 {
		backendVersion = backendVersion[:math.MaxUint16]
	}
	var l16 [2]byte
	binary.LittleEndian.PutUint16(l16[:], uint16(len(backendVersion)))
	if _, err := bw.Write(l16[:]); err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	if _, err := bw.WriteString(backendVersion); err != nil {
		return fmt.Errorf("dump: %w", err)
	}

	var scratch []byte
	for _, e := range entries {
		fp := e.fp.AppendBinary(nil)
		art := encodeArtifact(scratch[:0], e.art)
		scratch = art

		h := fnv.New64a()
		h.Write(art)

		var fixed [2 + 1 + 4]byte
		binary.LittleEndian.PutUint16(fixed[0:2], uint16(len(fp)))
		fixed[2] = byte(e.art.Kind)
		binary.LittleEndian.PutUint32(fixed[3:7], uint32(len(art)))

		if _, err := bw.Write(fixed[0:2]); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		if _, err := bw.Write(fp); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		if _, err := bw.Write(fixed[2:7]); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		if _, err := bw.Write(art); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		var sum [8]byte
		binary.LittleEndian.PutUint64(sum[:], h.Sum64())
		if _, err := bw.Write(sum[:]); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
	}
	return bw.Flush()
}

// Load restores entries from a dump written by Dump. Entries that fail
// validation or checksum are skipped, not fatal; the restored count is
// returned. A dump recorded under a different backend version is
// discarded whole and reported as ErrBackendVersionChanged.
func (c *GlyphCache) Load(r io.Reader, backendVersion string) (int, error) {
	br := bufio.NewReader(r)

	var hdr [16]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return 0, fmt.Errorf("dump header: %w", err)
	}
	if string(hdr[:8]) != dumpMagic {
		return 0, fmt.Errorf("dump header: bad magic %q", hdr[:8])
	}
	if v := binary.LittleEndian.Uint32(hdr[8:12]); v != dumpVersion {
		return 0, fmt.Errorf("dump header: unsupported version %d", v)
	}
	count := int(binary.LittleEndian.Uint32(hdr[12:16]))

	var l16 [2]byte
	if _, err := io.ReadFull(br, l16[:]); err != nil {
		return 0, fmt.Errorf("dump version record: %w", err)
	}
	ver := make([]byte, binary.LittleEndian.Uint16(l16[:]))
	if _, err := io.ReadFull(br, ver); err != nil {
		return 0, fmt.Errorf("dump version record: %w", err)
	}
	if string(ver) != backendVersion {
		return 0, fmt.Errorf("%w: dump has %q, backend is %q",
			ErrBackendVersionChanged, ver, backendVersion)
	}

	restored := 0
	for i := 0; i < count; i++ {
		fp, art, err := readDumpEntry(br)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				logger().Warn("cache dump truncated",
					"restored", restored, "expected", count)
				return restored, nil
			}
			logger().Warn("cache dump entry skipped", "index", i, "error", err)
			continue
		}
		if c.install(fp, art) {
			restored++
		}
	}
	return restored, nil
}

// readDumpEntry reads and validates one entry. Corruption inside an
// entry's payload is returned as an ordinary error so the caller can
// skip it; a short read surfaces as io.ErrUnexpectedEOF.
func readDumpEntry(br *bufio.Reader) (Fingerprint, *Artifact, error) {
	var l16 [2]byte
	if _, err := io.ReadFull(br, l16[:]); err != nil {
		return Fingerprint{}, nil, err
	}
	fpBytes := make([]byte, binary.LittleEndian.Uint16(l16[:]))
	if _, err := io.ReadFull(br, fpBytes); err != nil {
		return Fingerprint{}, nil, err
	}

	var fixed [5]byte
	if _, err := io.ReadFull(br, fixed[:]); err != nil {
		return Fingerprint{}, nil, err
	}
	tag := Representation(fixed[0])
	artLen := binary.LittleEndian.Uint32(fixed[1:5])
	if artLen > maxDumpArtifact {
		return Fingerprint{}, nil, fmt.Errorf("artifact length %d out of range", artLen)
	}
	artBytes := make([]byte, artLen)
	if _, err := io.ReadFull(br, artBytes); err != nil {
		return Fingerprint{}, nil, err
	}
	var sum [8]byte
	if _, err := io.ReadFull(br, sum[:]); err != nil {
		return Fingerprint{}, nil, err
	}

	h := fnv.New64a()
	h.Write(artBytes)
	if h.Sum64() != binary.LittleEndian.Uint64(sum[:]) {
		return Fingerprint{}, nil, fmt.Errorf("checksum mismatch")
	}

	fp, err := decodeFingerprint(fpBytes)
	if err != nil {
		return Fingerprint{}, nil, err
	}
	if err := fp.Validate(); err != nil {
		return Fingerprint{}, nil, err
	}
	if tag != fp.Repr {
		return Fingerprint{}, nil, fmt.Errorf("artifact tag %v does not match fingerprint %v", tag, fp.Repr)
	}

	art, err := decodeArtifact(tag, artBytes)
	if err != nil {
		return Fingerprint{}, nil, err
	}
	if err := art.Validate(); err != nil {
		return Fingerprint{}, nil, err
	}
	return fp, art, nil
}

// Artifact payload encodings. Each starts from the tag already recorded
// in the entry frame, so only the payload body is serialized here.

func appendU32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

func appendF64(dst []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
}

func appendF32(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}

type dumpReader struct {
	data []byte
	off  int
	err  error
}

func (d *dumpReader) u8() byte {
	if d.err != nil || d.off+1 > len(d.data) {
		d.err = io.ErrUnexpectedEOF
		return 0
	}
	v := d.data[d.off]
	d.off++
	return v
}

func (d *dumpReader) u32() uint32 {
	if d.err != nil || d.off+4 > len(d.data) {
		d.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v
}

func (d *dumpReader) f64() float64 {
	if d.err != nil || d.off+8 > len(d.data) {
		d.err = io.ErrUnexpectedEOF
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(d.data[d.off:]))
	d.off += 8
	return v
}

func (d *dumpReader) f32() float32 {
	return math.Float32frombits(d.u32())
}

func (d *dumpReader) bytes(n int) []byte {
	if d.err != nil || n < 0 || d.off+n > len(d.data) {
		d.err = io.ErrUnexpectedEOF
		return nil
	}
	v := d.data[d.off : d.off+n]
	d.off += n
	return v
}

func encodeArtifact(dst []byte, art *Artifact) []byte {
	switch art.Kind {
	case ReprBitmap:
		b := art.Bitmap
		dst = appendU32(dst, uint32(b.Width))
		dst = appendU32(dst, uint32(b.Height))
		dst = appendU32(dst, uint32(b.Stride))
		dst = append(dst, byte(b.Format))
		dst = appendF64(dst, b.OriginX)
		dst = appendF64(dst, b.OriginY)
		dst = appendU32(dst, uint32(len(b.Data)))
		dst = append(dst, b.Data...)

	case ReprSDF, ReprMSDF:
		f := art.Field
		dst = appendU32(dst, uint32(f.Width))
		dst = appendU32(dst, uint32(f.Height))
		dst = appendU32(dst, uint32(f.Channels))
		dst = appendF64(dst, f.Scale)
		dst = appendF64(dst, f.Range)
		dst = appendF64(dst, f.OriginX)
		dst = appendF64(dst, f.OriginY)
		dst = appendU32(dst, uint32(len(f.Samples)))
		for _, s := range f.Samples {
			dst = appendF32(dst, s)
		}

	case ReprOutline:
		o := art.Outline
		dst = appendU32(dst, uint32(o.UnitsPerEm))
		dst = appendU32(dst, uint32(len(o.Contours)))
		for i := range o.Contours {
			ct := &o.Contours[i]
			closed := byte(0)
			if ct.Closed {
				closed = 1
			}
			dst = append(dst, closed)
			dst = appendU32(dst, uint32(len(ct.Points)))
			for _, p := range ct.Points {
				dst = appendF32(dst, p.X)
				dst = appendF32(dst, p.Y)
				dst = append(dst, byte(p.Kind))
			}
		}

	case ReprPath:
		p := art.Path
		dst = appendU32(dst, uint32(len(p.Commands)))
		for _, cmd := range p.Commands {
			dst = append(dst, byte(cmd.Op))
			for _, pt := range cmd.Points {
				dst = appendF32(dst, pt.X)
				dst = appendF32(dst, pt.Y)
			}
		}

	case ReprMetrics:
		m := art.Metrics
		dst = appendF64(dst, m.Advance)
		dst = appendF64(dst, m.LeftBearing)
		dst = appendF64(dst, m.TopBearing)
		dst = appendF64(dst, m.Bounds.MinX)
		dst = appendF64(dst, m.Bounds.MinY)
		dst = appendF64(dst, m.Bounds.MaxX)
		dst = appendF64(dst, m.Bounds.MaxY)
		dst = appendF64(dst, m.VerticalAdvance)
	}
	return dst
}

func decodeArtifact(tag Representation, data []byte) (*Artifact, error) {
	d := &dumpReader{data: data}
	art := &Artifact{Kind: tag}

	switch tag {
	case ReprBitmap:
		b := &BitmapData{
			Width:  int(d.u32()),
			Height: int(d.u32()),
			Stride: int(d.u32()),
			Format: PixelFormat(d.u8()),
		}
		b.OriginX = d.f64()
		b.OriginY = d.f64()
		n := int(d.u32())
		raw := d.bytes(n)
		if d.err == nil {
			b.Data = make([]byte, n)
			copy(b.Data, raw)
		}
		art.Bitmap = b

	case ReprSDF, ReprMSDF:
		f := &FieldData{
			Width:    int(d.u32()),
			Height:   int(d.u32()),
			Channels: int(d.u32()),
		}
		f.Scale = d.f64()
		f.Range = d.f64()
		f.OriginX = d.f64()
		f.OriginY = d.f64()
		n := int(d.u32())
		if n < 0 || n > maxDumpArtifact/4 {
			return nil, fmt.Errorf("field sample count %d out of range", n)
		}
		if d.err == nil {
			f.Samples = make([]float32, n)
			for i := range f.Samples {
				f.Samples[i] = d.f32()
			}
		}
		art.Field = f

	case ReprOutline:
		o := &OutlineData{UnitsPerEm: int(d.u32())}
		nc := int(d.u32())
		if nc < 0 || nc > maxDumpArtifact {
			return nil, fmt.Errorf("contour count %d out of range", nc)
		}
		for i := 0; i < nc && d.err == nil; i++ {
			ct := Contour{Closed: d.u8() == 1}
			np := int(d.u32())
			if np < 0 || np > maxDumpArtifact {
				return nil, fmt.Errorf("point count %d out of range", np)
			}
			for j := 0; j < np && d.err == nil; j++ {
				ct.Points = append(ct.Points, ContourPoint{
					X:    d.f32(),
					Y:    d.f32(),
					Kind: PointKind(d.u8()),
				})
			}
			o.Contours = append(o.Contours, ct)
		}
		art.Outline = o

	case ReprPath:
		p := &PathData{}
		nc := int(d.u32())
		if nc < 0 || nc > maxDumpArtifact {
			return nil, fmt.Errorf("command count %d out of range", nc)
		}
		for i := 0; i < nc && d.err == nil; i++ {
			cmd := PathCommand{Op: PathOp(d.u8())}
			for j := range cmd.Points {
				cmd.Points[j].X = d.f32()
				cmd.Points[j].Y = d.f32()
			}
			p.Commands = append(p.Commands, cmd)
		}
		art.Path = p

	case ReprMetrics:
		art.Metrics = &GlyphMetrics{
			Advance:     d.f64(),
			LeftBearing: d.f64(),
			TopBearing:  d.f64(),
			Bounds: Rect{
				MinX: d.f64(),
				MinY: d.f64(),
				MaxX: d.f64(),
				MaxY: d.f64(),
			},
			VerticalAdvance: d.f64(),
		}

	default:
		return nil, fmt.Errorf("unknown artifact tag %d", tag)
	}

	if d.err != nil {
		return nil, d.err
	}
	if d.off != len(d.data) {
		return nil, fmt.Errorf("%d trailing bytes after artifact", len(d.data)-d.off)
	}
	return art, nil
}
