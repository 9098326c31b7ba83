package schema

import (
	"encoding/binary"
	"fmt"
	"math/big"

	solana "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/wnt/tada/internal/chain"
)

// Reader walks a byte slice left to right, matching the little-endian,
// length-prefixed layout Anchor/Borsh programs use for both instruction
// payloads and log-emitted event payloads.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

var ErrShortBuffer = fmt.Errorf("schema: buffer too short")

func (r *Reader) take(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// U128 reads a 16-byte little-endian unsigned integer and returns its
// decimal string form, since it does not fit in any Go numeric type.
func (r *Reader) U128() (string, error) {
	b, err := r.take(16)
	if err != nil {
		return "", err
	}
	le := make([]byte, 16)
	for i, v := range b {
		le[15-i] = v
	}
	return new(big.Int).SetBytes(le).String(), nil
}

func (r *Reader) Bool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (r *Reader) PublicKey() (string, error) {
	b, err := r.take(32)
	if err != nil {
		return "", err
	}
	pk := solana.PublicKeyFromBytes(b)
	return pk.String(), nil
}

func (r *Reader) String() (string, error) {
	n, err := r.U32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}

func (r *Reader) Remaining() []byte { return r.buf[r.off:] }

// BoundedString reads a u32 length-prefixed UTF-8 string but refuses to
// consume it when the declared length exceeds max, leaving the reader's
// offset unchanged so a caller can abandon the whole parse rather than
// decode garbage off a misaligned buffer.
func (r *Reader) BoundedString(max int) (string, bool) {
	start := r.off
	n, err := r.U32()
	if err != nil {
		r.off = start
		return "", false
	}
	if int(n) > max {
		r.off = start
		return "", false
	}
	b, err := r.take(int(n))
	if err != nil {
		r.off = start
		return "", false
	}
	return string(b), true
}

// DecodeFields drives field-by-field decoding against an ordered layout,
// producing the chain.Value tree the rest of the pipeline operates on.
func DecodeFields(r *Reader, fields []Field) (map[string]chain.Value, error) {
	out := make(map[string]chain.Value, len(fields))
	for _, f := range fields {
		v, err := decodeField(r, f)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func decodeField(r *Reader, f Field) (chain.Value, error) {
	switch f.Kind {
	case KindU8:
		v, err := r.U8()
		return chain.Number(float64(v)), err
	case KindU16:
		v, err := r.U16()
		return chain.Number(float64(v)), err
	case KindU32:
		v, err := r.U32()
		return chain.Number(float64(v)), err
	case KindU64:
		v, err := r.U64()
		return chain.BigInt(fmt.Sprintf("%d", v)), err
	case KindU128:
		v, err := r.U128()
		return chain.BigInt(v), err
	case KindI8:
		v, err := r.U8()
		return chain.Number(float64(int8(v))), err
	case KindI16:
		v, err := r.U16()
		return chain.Number(float64(int16(v))), err
	case KindI32:
		v, err := r.U32()
		return chain.Number(float64(int32(v))), err
	case KindI64:
		v, err := r.U64()
		return chain.BigInt(fmt.Sprintf("%d", int64(v))), err
	case KindBool:
		v, err := r.Bool()
		return chain.Bool(v), err
	case KindPublicKey:
		v, err := r.PublicKey()
		return chain.String(v), err
	case KindString:
		v, err := r.String()
		return chain.String(v), err
	case KindBytes:
		// Byte blobs decode as base58, per spec.md §4.1's value
		// normalization (address-like blobs and raw byte arrays share the
		// same base58 encoding downstream consumers expect).
		v, err := r.Bytes()
		if err != nil {
			return chain.Value{}, err
		}
		return chain.String(base58.Encode(v)), nil
	case KindVec:
		n, err := r.U32()
		if err != nil {
			return chain.Value{}, err
		}
		items := make([]chain.Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := decodeField(r, *f.Elem)
			if err != nil {
				return chain.Value{}, fmt.Errorf("elem %d: %w", i, err)
			}
			items = append(items, v)
		}
		return chain.List(items), nil
	case KindArray:
		items := make([]chain.Value, 0, f.Len)
		for i := 0; i < f.Len; i++ {
			v, err := decodeField(r, *f.Elem)
			if err != nil {
				return chain.Value{}, fmt.Errorf("elem %d: %w", i, err)
			}
			items = append(items, v)
		}
		return chain.List(items), nil
	case KindOption:
		present, err := r.Bool()
		if err != nil {
			return chain.Value{}, err
		}
		if !present {
			return chain.Value{}, nil
		}
		return decodeField(r, *f.Elem)
	case KindStruct:
		m, err := DecodeFields(r, f.Fields)
		if err != nil {
			return chain.Value{}, err
		}
		return chain.Map(m), nil
	case KindUnion:
		tag, err := r.U8()
		if err != nil {
			return chain.Value{}, err
		}
		if int(tag) >= len(f.Variants) {
			return chain.Value{}, fmt.Errorf("union tag %d out of range (%d variants)", tag, len(f.Variants))
		}
		variant := f.Variants[tag]
		out := map[string]chain.Value{"variant": chain.String(variant.Name)}
		if !variant.Unit {
			v, err := decodeField(r, variant)
			if err != nil {
				return chain.Value{}, fmt.Errorf("variant %q: %w", variant.Name, err)
			}
			out["value"] = v
		}
		return chain.Map(out), nil
	default:
		return chain.Value{}, fmt.Errorf("unsupported field kind %v", f.Kind)
	}
}
