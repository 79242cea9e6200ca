package sas7bdat

import "github.com/pkg/errors"

// compression identifies the block-decompression scheme declared by a
// file's first ColumnText subheader.
type compression int

const (
	compressionNone compression = iota
	compressionRLE
	compressionRDC
)

const (
	rleSignature = "SASYZCRL"
	rdcSignature = "SASYZCR2"
)

// decompressInto expands src into dst according to the given scheme. Exactly
// len(dst) bytes are always written: any unused tail is left/zero-filled.
func decompressInto(c compression, dst, src []byte) error {
	switch c {
	case compressionNone:
		return decompressNone(dst, src)
	case compressionRLE:
		return decompressRLE(dst, src)
	case compressionRDC:
		return decompressRDC(dst, src)
	default:
		return errors.Wrapf(ErrBadCodec, "unknown compression scheme %d", c)
	}
}

// decompressNone is a straight copy; it fails if src does not fit in dst.
func decompressNone(dst, src []byte) error {
	if len(src) > len(dst) {
		return errors.Wrapf(ErrBadCodec, "uncompressed span of %d bytes does not fit destination of %d bytes", len(src), len(dst))
	}
	n := copy(dst, src)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// decompressRLE expands the SAS run-length codec (magic "SASYZCRL") per the
// command table in §4.3.1. Reads and writes are clamped to the remaining
// input/output; any tail of dst left unwritten at termination is zeroed.
func decompressRLE(dst, src []byte) error {
	out := 0
	in := 0

	write := func(b byte, n int) {
		for i := 0; i < n && out < len(dst); i++ {
			dst[out] = b
			out++
		}
	}
	writeFrom := func(n int) {
		for i := 0; i < n && in < len(src) && out < len(dst); i++ {
			dst[out] = src[in]
			out++
			in++
		}
	}
	readByte := func() (byte, bool) {
		if in >= len(src) {
			return 0, false
		}
		b := src[in]
		in++
		return b, true
	}

	for in < len(src) && out < len(dst) {
		cmdByte, ok := readByte()
		if !ok {
			break
		}
		cmd := cmdByte >> 4
		n := int(cmdByte & 0x0F)

		switch cmd {
		case 0x0, 0x1, 0x2, 0x3:
			b0, ok := readByte()
			if !ok {
				return errors.Wrap(ErrBadCodec, "RLE: truncated COPY64 operand")
			}
			l := (n << 8) + int(b0) + 64
			writeFrom(l)
		case 0x4:
			b0, ok := readByte()
			if !ok {
				return errors.Wrap(ErrBadCodec, "RLE: truncated INSERT_BYTE18 operand")
			}
			b1, ok := readByte()
			if !ok {
				return errors.Wrap(ErrBadCodec, "RLE: truncated INSERT_BYTE18 fill byte")
			}
			l := (n << 4) + int(b0) + 18
			write(b1, l)
		case 0x5:
			b0, ok := readByte()
			if !ok {
				return errors.Wrap(ErrBadCodec, "RLE: truncated INSERT_AT17 operand")
			}
			l := (n << 8) + int(b0) + 17
			write(0x40, l)
		case 0x6:
			b0, ok := readByte()
			if !ok {
				return errors.Wrap(ErrBadCodec, "RLE: truncated INSERT_BLANK17 operand")
			}
			l := (n << 8) + int(b0) + 17
			write(0x20, l)
		case 0x7:
			b0, ok := readByte()
			if !ok {
				return errors.Wrap(ErrBadCodec, "RLE: truncated INSERT_ZERO17 operand")
			}
			l := (n << 8) + int(b0) + 17
			write(0x00, l)
		case 0x8:
			writeFrom(n + 1)
		case 0x9:
			writeFrom(n + 17)
		case 0xA:
			writeFrom(n + 33)
		case 0xB:
			writeFrom(n + 49)
		case 0xC:
			b0, ok := readByte()
			if !ok {
				return errors.Wrap(ErrBadCodec, "RLE: truncated INSERT_BYTE3 fill byte")
			}
			write(b0, n+3)
		case 0xD:
			write(0x40, n+2)
		case 0xE:
			write(0x20, n+2)
		case 0xF:
			write(0x00, n+2)
		default:
			// Unreachable: cmd is a 4-bit nibble, all 16 values are handled above.
			return errors.Wrap(ErrBadCodec, "RLE: impossible command nibble")
		}
	}

	for ; out < len(dst); out++ {
		dst[out] = 0
	}
	return nil
}

// decompressRDC expands SAS's Ross Data Compression codec (magic
// "SASYZCR2") per §4.3.2.
func decompressRDC(dst, src []byte) error {
	out := 0
	in := 0
	var ctrlBits uint16
	var ctrlMask uint16

	for in < len(src) && out < len(dst) {
		ctrlMask >>= 1
		if ctrlMask == 0 {
			if in+2 > len(src) {
				return errors.Wrap(ErrBadCodec, "RDC: truncated control word")
			}
			ctrlBits = uint16(src[in])<<8 | uint16(src[in+1])
			in += 2
			ctrlMask = 0x8000
		}

		if ctrlBits&ctrlMask == 0 {
			dst[out] = src[in]
			out++
			in++
			continue
		}

		if in >= len(src) {
			return errors.Wrap(ErrBadCodec, "RDC: truncated marker byte")
		}
		marker := src[in]
		in++
		cmd := marker >> 4
		cnt := int(marker & 0x0F)

		switch {
		case cmd == 0:
			if in >= len(src) {
				return errors.Wrap(ErrBadCodec, "RDC: truncated short-RLE fill byte")
			}
			b := src[in]
			in++
			n := cnt + 3
			for i := 0; i < n && out < len(dst); i++ {
				dst[out] = b
				out++
			}
		case cmd == 1:
			if in+1 >= len(src) {
				return errors.Wrap(ErrBadCodec, "RDC: truncated long-RLE operands")
			}
			e := src[in]
			in++
			b := src[in]
			in++
			n := cnt + int(e)<<4 + 19
			for i := 0; i < n && out < len(dst); i++ {
				dst[out] = b
				out++
			}
		case cmd == 2:
			if in+1 >= len(src) {
				return errors.Wrap(ErrBadCodec, "RDC: truncated long-pattern operands")
			}
			e := src[in]
			in++
			c := src[in]
			in++
			offset := cnt + 3 + int(e)<<4
			length := int(c) + 16
			if err := copyBackref(dst, &out, offset, length); err != nil {
				return err
			}
		case cmd >= 3 && cmd <= 15:
			if in >= len(src) {
				return errors.Wrap(ErrBadCodec, "RDC: truncated short-pattern operand")
			}
			e := src[in]
			in++
			offset := cnt + 3 + int(e)<<4
			length := int(cmd)
			if err := copyBackref(dst, &out, offset, length); err != nil {
				return err
			}
		}
	}

	for ; out < len(dst); out++ {
		dst[out] = 0
	}
	return nil
}

// copyBackref copies length bytes from dst[*out-offset:] to dst[*out:],
// replaying the offset-long pattern when length overlaps offset, and
// clamping to the remaining capacity of dst.
func copyBackref(dst []byte, out *int, offset, length int) error {
	if offset <= 0 || offset > *out {
		return errors.Wrapf(ErrBadCodec, "RDC: back-reference offset %d exceeds current position %d", offset, *out)
	}
	start := *out - offset
	for i := 0; i < length && *out < len(dst); i++ {
		dst[*out] = dst[start+i%offset]
		*out++
	}
	return nil
}
