package dtype

import (
	"encoding/binary"
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/message"
)

// Number is the set of Go element types numeric datasets decode into.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

var classNames = map[message.DatatypeClass]string{
	message.ClassBitfield:  "bitfield",
	message.ClassOpaque:    "opaque",
	message.ClassReference: "reference",
	message.ClassTime:      "time",
}

// Name describes dt briefly, for example "float64", "uint16",
// "string[16]" or "enum of int8".
func Name(dt *message.Datatype) string {
	if dt == nil {
		return "unknown"
	}
	bits := dt.Size * 8
	switch dt.Class {
	case message.ClassFloatPoint:
		return fmt.Sprint("float", bits)
	case message.ClassFixedPoint:
		if !dt.Signed {
			return fmt.Sprint("uint", bits)
		}
		return fmt.Sprint("int", bits)
	case message.ClassString:
		return fmt.Sprintf("string[%d]", dt.Size)
	case message.ClassCompound:
		return fmt.Sprintf("compound{%d fields}", len(dt.Members))
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return "vlen string"
		}
		return "vlen of " + Name(dt.BaseType)
	case message.ClassArray:
		return fmt.Sprintf("array%v of %s", dt.ArrayDims, Name(dt.BaseType))
	case message.ClassEnum:
		return "enum of " + Name(dt.BaseType)
	}
	if s, ok := classNames[dt.Class]; ok {
		return s
	}
	return fmt.Sprintf("class %d", dt.Class)
}

// ByteOrder returns the element byte order of dt.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// IsNumeric reports whether elements of dt decode into a Number.
func IsNumeric(dt *message.Datatype) bool {
	if dt == nil {
		return false
	}
	switch dt.Class {
	case message.ClassFloatPoint:
		return dt.Size == 4 || dt.Size == 8
	case message.ClassFixedPoint:
		return dt.Size > 0 && dt.Size <= 8 && dt.Size&(dt.Size-1) == 0
	}
	return false
}
