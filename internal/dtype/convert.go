package dtype

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/turbslice/internal/message"
)

// Decode converts n raw elements of a numeric datatype into a []T.
// Values are converted with Go conversion rules, so narrowing may truncate.
func Decode[T Number](dt *message.Datatype, data []byte, n uint64) ([]T, error) {
	if !IsNumeric(dt) {
		return nil, fmt.Errorf("cannot decode %s as a number", Name(dt))
	}
	size := uint64(dt.Size)
	if uint64(len(data)) < n*size {
		return nil, fmt.Errorf("not enough data: need %d bytes, have %d", n*size, len(data))
	}

	out := make([]T, n)
	order := ByteOrder(dt)

	if dt.Class == message.ClassFloatPoint {
		if size == 4 {
			for i := range out {
				out[i] = T(math.Float32frombits(order.Uint32(data[uint64(i)*4:])))
			}
			return out, nil
		}
		for i := range out {
			out[i] = T(math.Float64frombits(order.Uint64(data[uint64(i)*8:])))
		}
		return out, nil
	}

	for i := range out {
		elem := data[uint64(i)*size : uint64(i+1)*size]
		var u uint64
		switch size {
		case 1:
			u = uint64(elem[0])
		case 2:
			u = uint64(order.Uint16(elem))
		case 4:
			u = uint64(order.Uint32(elem))
		case 8:
			u = order.Uint64(elem)
		}
		if dt.Signed {
			shift := 64 - 8*size
			out[i] = T(int64(u<<shift) >> shift)
		} else {
			out[i] = T(u)
		}
	}
	return out, nil
}

// ToFloat64 converts n raw numeric elements to float64.
func ToFloat64(dt *message.Datatype, data []byte, n uint64) ([]float64, error) {
	return Decode[float64](dt, data, n)
}

// DecodeStrings converts n fixed-length string elements, dropping padding.
func DecodeStrings(dt *message.Datatype, data []byte, n uint64) ([]string, error) {
	if dt == nil || dt.Class != message.ClassString {
		return nil, fmt.Errorf("cannot decode %s as a fixed-length string", Name(dt))
	}
	size := uint64(dt.Size)
	if uint64(len(data)) < n*size {
		return nil, fmt.Errorf("not enough data: need %d bytes, have %d", n*size, len(data))
	}

	out := make([]string, n)
	for i := range out {
		s := data[uint64(i)*size : uint64(i+1)*size]
		end := len(s)
		for j, b := range s {
			if b == 0 {
				end = j
				break
			}
		}
		if dt.StringPadding == message.PadSpacePad {
			for end > 0 && s[end-1] == ' ' {
				end--
			}
		}
		out[i] = string(s[:end])
	}
	return out, nil
}

// Convert decodes n raw elements into dest, which must point to a slice of
// a numeric type or of string.
func Convert(dt *message.Datatype, data []byte, n uint64, dest any) error {
	var err error
	switch d := dest.(type) {
	case *[]float64:
		*d, err = Decode[float64](dt, data, n)
	case *[]float32:
		*d, err = Decode[float32](dt, data, n)
	case *[]int64:
		*d, err = Decode[int64](dt, data, n)
	case *[]int32:
		*d, err = Decode[int32](dt, data, n)
	case *[]int16:
		*d, err = Decode[int16](dt, data, n)
	case *[]int8:
		*d, err = Decode[int8](dt, data, n)
	case *[]uint64:
		*d, err = Decode[uint64](dt, data, n)
	case *[]uint32:
		*d, err = Decode[uint32](dt, data, n)
	case *[]uint16:
		*d, err = Decode[uint16](dt, data, n)
	case *[]uint8:
		*d, err = Decode[uint8](dt, data, n)
	case *[]string:
		*d, err = DecodeStrings(dt, data, n)
	default:
		return fmt.Errorf("unsupported destination type %T", dest)
	}
	return err
}
