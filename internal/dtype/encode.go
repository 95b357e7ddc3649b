package dtype

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/robert-malhotra/turbslice/internal/message"
)

// DatatypeOf returns the little-endian HDF5 datatype for a supported slice
// type. Strings map to a null-padded fixed-length type sized to the longest
// value.
func DatatypeOf(src any) (*message.Datatype, error) {
	switch s := src.(type) {
	case []float64:
		return message.NewFloatDatatype(8, message.OrderLE), nil
	case []float32:
		return message.NewFloatDatatype(4, message.OrderLE), nil
	case []int64:
		return message.NewFixedPointDatatype(8, true, message.OrderLE), nil
	case []int32:
		return message.NewFixedPointDatatype(4, true, message.OrderLE), nil
	case []int16:
		return message.NewFixedPointDatatype(2, true, message.OrderLE), nil
	case []int8:
		return message.NewFixedPointDatatype(1, true, message.OrderLE), nil
	case []uint64:
		return message.NewFixedPointDatatype(8, false, message.OrderLE), nil
	case []uint32:
		return message.NewFixedPointDatatype(4, false, message.OrderLE), nil
	case []uint16:
		return message.NewFixedPointDatatype(2, false, message.OrderLE), nil
	case []uint8:
		return message.NewFixedPointDatatype(1, false, message.OrderLE), nil
	case []string:
		size := 1
		for _, v := range s {
			size = max(size, len(v))
		}
		return message.NewStringDatatype(uint32(size), message.PadNullPad, message.CharsetUTF8), nil
	default:
		return nil, fmt.Errorf("unsupported Go type %T", src)
	}
}

// Len returns the number of elements in a supported slice.
func Len(src any) (int, error) {
	switch s := src.(type) {
	case []float64:
		return len(s), nil
	case []float32:
		return len(s), nil
	case []int64:
		return len(s), nil
	case []int32:
		return len(s), nil
	case []int16:
		return len(s), nil
	case []int8:
		return len(s), nil
	case []uint64:
		return len(s), nil
	case []uint32:
		return len(s), nil
	case []uint16:
		return len(s), nil
	case []uint8:
		return len(s), nil
	case []string:
		return len(s), nil
	default:
		return 0, fmt.Errorf("unsupported Go type %T", src)
	}
}

// Encode converts a slice of Go values to raw bytes of datatype dt.
func Encode(dt *message.Datatype, src any) ([]byte, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	switch s := src.(type) {
	case []float64:
		return encodeNumbers(dt, s)
	case []float32:
		return encodeNumbers(dt, s)
	case []int64:
		return encodeNumbers(dt, s)
	case []int32:
		return encodeNumbers(dt, s)
	case []int16:
		return encodeNumbers(dt, s)
	case []int8:
		return encodeNumbers(dt, s)
	case []uint64:
		return encodeNumbers(dt, s)
	case []uint32:
		return encodeNumbers(dt, s)
	case []uint16:
		return encodeNumbers(dt, s)
	case []uint8:
		return encodeNumbers(dt, s)
	case []string:
		return encodeStrings(dt, s)
	default:
		return nil, fmt.Errorf("unsupported Go type %T", src)
	}
}

func encodeNumbers[T Number](dt *message.Datatype, src []T) ([]byte, error) {
	if !IsNumeric(dt) {
		return nil, fmt.Errorf("cannot encode numbers as %s", Name(dt))
	}
	size := int(dt.Size)
	order := ByteOrder(dt)
	data := make([]byte, len(src)*size)

	for i, v := range src {
		b := data[i*size:]
		if dt.Class == message.ClassFloatPoint {
			if size == 4 {
				order.PutUint32(b, math.Float32bits(float32(v)))
			} else {
				order.PutUint64(b, math.Float64bits(float64(v)))
			}
			continue
		}
		putInt(order, b, size, v)
	}
	return data, nil
}

func putInt[T Number](order binary.ByteOrder, b []byte, size int, v T) {
	// Through int64 so negative values keep two's complement bits.
	u := uint64(int64(v))
	switch size {
	case 1:
		b[0] = byte(u)
	case 2:
		order.PutUint16(b, uint16(u))
	case 4:
		order.PutUint32(b, uint32(u))
	case 8:
		order.PutUint64(b, u)
	}
}

func encodeStrings(dt *message.Datatype, src []string) ([]byte, error) {
	if dt.Class != message.ClassString {
		return nil, fmt.Errorf("cannot encode strings as %s", Name(dt))
	}
	size := int(dt.Size)
	data := make([]byte, len(src)*size)
	for i, s := range src {
		elem := data[i*size : (i+1)*size]
		n := copy(elem, s)
		if dt.StringPadding == message.PadSpacePad {
			for j := n; j < size; j++ {
				elem[j] = ' '
			}
		}
	}
	return data, nil
}
